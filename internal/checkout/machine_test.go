package checkout

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GoStans-Co/gostans-backend/internal/cart"
	"github.com/GoStans-Co/gostans-backend/internal/payment"
	"github.com/GoStans-Co/gostans-backend/pkg/db/models"
	"github.com/GoStans-Co/gostans-backend/pkg/enums"
	pkgerrors "github.com/GoStans-Co/gostans-backend/pkg/errors"
	"github.com/GoStans-Co/gostans-backend/pkg/pricing"
	"github.com/GoStans-Co/gostans-backend/pkg/types"
)

type stubCartViewer struct {
	view *cart.View
	err  error
}

func (s *stubCartViewer) View(_ context.Context, _ cart.Owner) (*cart.View, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.view, nil
}

type stubPayments struct {
	finalizeCalls int
	finalizeReq   payment.FinalizeRequest
	finalizeErr   error
	result        *payment.Result
	session       *payment.Session
	tornDown      []string
}

func (s *stubPayments) Finalize(_ context.Context, req payment.FinalizeRequest) (*payment.Result, error) {
	s.finalizeCalls++
	s.finalizeReq = req
	if s.finalizeErr != nil {
		return nil, s.finalizeErr
	}
	return s.result, nil
}

func (s *stubPayments) Session(_ context.Context, _ string) (*payment.Session, error) {
	if s.session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeSessionGone, "payment session not found")
	}
	return s.session, nil
}

func (s *stubPayments) Teardown(_ context.Context, sessionID string) error {
	s.tornDown = append(s.tornDown, sessionID)
	return nil
}

type stubBookingLookup struct {
	record *models.Booking
}

func (s *stubBookingLookup) CompletedForSession(_ context.Context, _ string) (*models.Booking, error) {
	if s.record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no completed booking for session")
	}
	return s.record, nil
}

func filledView() *cart.View {
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	lines := []cart.Line{{
		TourID:       "t1",
		Snapshot:     types.TourSnapshot{Title: "Silk Road Classic", UnitPrice: decimal.RequireFromString("100"), Currency: "USD"},
		Quantity:     1,
		SelectedDate: &date,
		Guests:       types.GuestCounts{Adults: 1},
	}}
	return &cart.View{
		Lines:       lines,
		Totals:      pricing.CartTotals([]pricing.LineInput{{UnitPrice: decimal.RequireFromString("100"), Quantity: 1, Counts: types.GuestCounts{Adults: 1}}}),
		TotalGuests: 1,
		CanProceed:  true,
	}
}

func emptyView() *cart.View {
	return &cart.View{LineErrors: map[string]bool{}}
}

func newMachineFixture(t *testing.T, view *cart.View) (*Machine, *stubPayments, *stubBookingLookup) {
	t.Helper()
	payments := &stubPayments{}
	bookings := &stubBookingLookup{}
	machine, err := NewMachine(&stubCartViewer{view: view}, payments, bookings, nil)
	if err != nil {
		t.Fatalf("building machine: %v", err)
	}
	return machine, payments, bookings
}

func TestLocationToStepEnumeratesPaths(t *testing.T) {
	t.Parallel()

	cases := map[string]enums.CheckoutStep{
		"/":                      enums.StepCart,
		"/cart":                  enums.StepCart,
		"/cart/":                 enums.StepCart,
		"/checkout":              enums.StepCheckout,
		"/checkout/payment":      enums.StepPayment,
		"/checkout/confirmation": enums.StepConfirmation,
	}
	for path, want := range cases {
		got, err := LocationToStep(path, nil)
		if err != nil {
			t.Fatalf("path %q: %v", path, err)
		}
		if got != want {
			t.Fatalf("path %q: expected %s, got %s", path, want, got)
		}
	}

	if _, err := LocationToStep("/account/settings", nil); err == nil {
		t.Fatal("expected error for unknown path")
	}
}

func TestResolveCartStep(t *testing.T) {
	t.Parallel()

	machine, _, _ := newMachineFixture(t, filledView())
	res, err := machine.Resolve(context.Background(), ResolveInput{Path: "/cart"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.View != ViewStep || res.Step != enums.StepCart {
		t.Fatalf("unexpected resolution: %+v", res)
	}

	machine, _, _ = newMachineFixture(t, emptyView())
	res, err = machine.Resolve(context.Background(), ResolveInput{Path: "/cart"})
	if err != nil {
		t.Fatalf("resolve empty: %v", err)
	}
	if res.View != ViewEmptyCart {
		t.Fatalf("expected empty-cart view, got %s", res.View)
	}
}

func TestResolveEmptyCartMidFlowIsSessionExpired(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"/checkout", "/checkout/payment"} {
		machine, _, _ := newMachineFixture(t, emptyView())
		res, err := machine.Resolve(context.Background(), ResolveInput{Path: path, SessionID: "sess-1"})
		if err != nil {
			t.Fatalf("resolve %s: %v", path, err)
		}
		if res.View != ViewSessionExpired {
			t.Fatalf("path %s: expected session-expired, got %s", path, res.View)
		}
	}
}

func TestResolveRedirectReturnFinalizesOnce(t *testing.T) {
	t.Parallel()

	machine, payments, _ := newMachineFixture(t, filledView())
	payments.result = &payment.Result{
		Booking: &models.Booking{Reference: "GS-AB12CD34"},
	}

	query := url.Values{}
	query.Set("paymentId", "ORDER-1")
	query.Set("PayerID", "PAYER-7")

	res, err := machine.Resolve(context.Background(), ResolveInput{
		Path:      "/checkout/payment",
		Query:     query,
		SessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if payments.finalizeCalls != 1 {
		t.Fatalf("expected exactly one finalize call, got %d", payments.finalizeCalls)
	}
	if payments.finalizeReq.CorrelationID != "ORDER-1" || payments.finalizeReq.PayerID != "PAYER-7" {
		t.Fatalf("unexpected finalize request: %+v", payments.finalizeReq)
	}
	if res.View != ViewConfirmation || res.Booking == nil {
		t.Fatalf("expected confirmation with booking, got %+v", res)
	}
}

func TestResolveRedirectReturnRefreshAfterSuccess(t *testing.T) {
	t.Parallel()

	// the first finalize captured and destroyed the session, so a refresh
	// of the return URL sees session-gone; the completed booking must
	// still render as the confirmation
	machine, payments, bookings := newMachineFixture(t, filledView())
	payments.finalizeErr = pkgerrors.New(pkgerrors.CodeSessionGone, "payment session not found")
	bookings.record = &models.Booking{Reference: "GS-AB12CD34"}

	query := url.Values{}
	query.Set("paymentId", "ORDER-1")
	query.Set("PayerID", "PAYER-7")

	res, err := machine.Resolve(context.Background(), ResolveInput{
		Path:      "/checkout/payment",
		Query:     query,
		SessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if res.View != ViewConfirmation || res.Booking == nil {
		t.Fatalf("expected confirmation for refreshed return, got %+v", res)
	}
	if res.Banner != "" {
		t.Fatalf("expected no error banner, got %q", res.Banner)
	}
	if len(payments.tornDown) != 0 {
		t.Fatal("expected no teardown when the booking already completed")
	}

	// no completed booking: session-gone is a genuine expiry
	bookings.record = nil
	res, err = machine.Resolve(context.Background(), ResolveInput{
		Path:      "/checkout/payment",
		Query:     query,
		SessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("resolve expired: %v", err)
	}
	if res.View != ViewReturning || res.Banner == "" {
		t.Fatalf("expected returning view with banner, got %+v", res)
	}
}

func TestResolveRedirectReturnFailureSurfacesBanner(t *testing.T) {
	t.Parallel()

	machine, payments, _ := newMachineFixture(t, filledView())
	payments.finalizeErr = pkgerrors.New(pkgerrors.CodePayment, "capture declined")

	query := url.Values{}
	query.Set("paymentId", "ORDER-1")
	query.Set("PayerID", "PAYER-7")

	res, err := machine.Resolve(context.Background(), ResolveInput{
		Path:      "/checkout/payment",
		Query:     query,
		SessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if res.Banner != "capture declined" {
		t.Fatalf("expected provider message surfaced, got %q", res.Banner)
	}
	if len(payments.tornDown) != 1 {
		t.Fatal("expected latch reset after failed finalize")
	}
}

func TestResolveProviderErrorParamResetsLatch(t *testing.T) {
	t.Parallel()

	machine, payments, _ := newMachineFixture(t, filledView())

	query := url.Values{}
	query.Set("error", "buyer cancelled approval")

	res, err := machine.Resolve(context.Background(), ResolveInput{
		Path:      "/checkout/payment",
		Query:     query,
		SessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if res.Banner != "buyer cancelled approval" {
		t.Fatalf("expected error banner, got %q", res.Banner)
	}
	if len(payments.tornDown) != 1 {
		t.Fatal("expected payment session torn down on provider error")
	}
	if payments.finalizeCalls != 0 {
		t.Fatal("expected no finalize call on error return")
	}
}

func TestResolveBareSuccessVerifiesBooking(t *testing.T) {
	t.Parallel()

	machine, payments, bookings := newMachineFixture(t, emptyView())
	bookings.record = &models.Booking{Reference: "GS-AB12CD34"}

	query := url.Values{}
	query.Set("success", "true")

	res, err := machine.Resolve(context.Background(), ResolveInput{
		Path:      "/checkout/payment",
		Query:     query,
		SessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if payments.finalizeCalls != 0 {
		t.Fatal("expected no finalize call for a bare success return")
	}
	if res.View != ViewConfirmation || res.Booking == nil {
		t.Fatalf("expected verified confirmation, got %+v", res)
	}

	// no completed booking server-side: the flag alone is not trusted
	bookings.record = nil
	res, err = machine.Resolve(context.Background(), ResolveInput{
		Path:      "/checkout/payment",
		Query:     query,
		SessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("resolve unverified: %v", err)
	}
	if res.View != ViewSessionExpired {
		t.Fatalf("expected session-expired for unverified success, got %s", res.View)
	}
}

func TestBeginCheckoutFreezesDraft(t *testing.T) {
	t.Parallel()

	machine, _, _ := newMachineFixture(t, filledView())
	draft, err := machine.BeginCheckout(context.Background(), cart.Owner{GuestSessionID: "guest-1"})
	if err != nil {
		t.Fatalf("begin checkout: %v", err)
	}

	if draft.TotalGuests != 1 {
		t.Fatalf("expected 1 guest, got %d", draft.TotalGuests)
	}
	if draft.SelectedDates["t1"] != "2026-09-14" {
		t.Fatalf("expected frozen date, got %q", draft.SelectedDates["t1"])
	}
	if draft.GuestCounts["t1"].Adults != 1 {
		t.Fatalf("expected frozen guest counts, got %+v", draft.GuestCounts["t1"])
	}
}

func TestBeginCheckoutBlockedByValidation(t *testing.T) {
	t.Parallel()

	view := filledView()
	view.Lines[0].SelectedDate = nil
	machine, _, _ := newMachineFixture(t, view)

	_, err := machine.BeginCheckout(context.Background(), cart.Owner{GuestSessionID: "guest-1"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolveConfirmationWithoutBooking(t *testing.T) {
	t.Parallel()

	machine, _, _ := newMachineFixture(t, emptyView())
	res, err := machine.Resolve(context.Background(), ResolveInput{
		Path:      "/checkout/confirmation",
		SessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.View != ViewSessionExpired {
		t.Fatalf("expected session-expired, got %s", res.View)
	}
}
