package checkout

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/GoStans-Co/gostans-backend/internal/cart"
	"github.com/GoStans-Co/gostans-backend/internal/payment"
	pkgcheckout "github.com/GoStans-Co/gostans-backend/pkg/checkout"
	"github.com/GoStans-Co/gostans-backend/pkg/db/models"
	"github.com/GoStans-Co/gostans-backend/pkg/enums"
	pkgerrors "github.com/GoStans-Co/gostans-backend/pkg/errors"
	"github.com/GoStans-Co/gostans-backend/pkg/logger"
	"github.com/GoStans-Co/gostans-backend/pkg/types"
)

// Return-URL query parameters the redirect provider appends.
const (
	paramPaymentID = "paymentId"
	paramPayerID   = "PayerID"
	paramError     = "error"
	paramSuccess   = "success"
)

// LocationToStep maps a navigational location onto a checkout step. The
// cases are enumerated exhaustively; an unknown path is an error rather
// than a silent fallthrough.
func LocationToStep(path string, _ url.Values) (enums.CheckoutStep, error) {
	cleaned := strings.TrimSuffix(strings.TrimSpace(path), "/")
	if cleaned == "" {
		cleaned = "/"
	}

	switch cleaned {
	case "/", "/cart":
		return enums.StepCart, nil
	case "/checkout":
		return enums.StepCheckout, nil
	case "/checkout/payment":
		return enums.StepPayment, nil
	case "/checkout/confirmation":
		return enums.StepConfirmation, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no checkout step for path %q", path))
	}
}

// ViewKind is what the resolved navigation event should render.
type ViewKind string

const (
	// ViewStep renders the step's normal content.
	ViewStep ViewKind = "step"
	// ViewEmptyCart is the cart step with nothing in it.
	ViewEmptyCart ViewKind = "empty_cart"
	// ViewSessionExpired is the terminal stale-state view: the location
	// implies checkout or payment but the cart is gone.
	ViewSessionExpired ViewKind = "session_expired"
	// ViewReturning is the pending view shown while a redirect return
	// resolves through finalize.
	ViewReturning ViewKind = "returning"
	// ViewConfirmation renders a completed booking.
	ViewConfirmation ViewKind = "confirmation"
)

// ResolveInput is the full context of one navigation event.
type ResolveInput struct {
	Path      string
	Query     url.Values
	Owner     cart.Owner
	SessionID string
}

// Resolution is the deterministic outcome of a navigation event: which step
// the location implies, what to render, and the data the view needs.
type Resolution struct {
	Step    enums.CheckoutStep `json:"step"`
	View    ViewKind           `json:"view"`
	Banner  string             `json:"banner,omitempty"`
	Cart    *cart.View         `json:"cart,omitempty"`
	Session *payment.Session   `json:"session,omitempty"`
	Booking *models.Booking    `json:"booking,omitempty"`
}

type cartViewer interface {
	View(ctx context.Context, owner cart.Owner) (*cart.View, error)
}

type paymentResolver interface {
	Finalize(ctx context.Context, req payment.FinalizeRequest) (*payment.Result, error)
	Session(ctx context.Context, sessionID string) (*payment.Session, error)
	Teardown(ctx context.Context, sessionID string) error
}

type bookingLookup interface {
	CompletedForSession(ctx context.Context, sessionID string) (*models.Booking, error)
}

// Machine derives checkout state from navigation context. It holds no step
// state of its own, so refresh, direct entry, and back/forward all resolve
// the same way.
type Machine struct {
	carts    cartViewer
	payments paymentResolver
	bookings bookingLookup
	logg     *logger.Logger
}

// NewMachine wires the state machine.
func NewMachine(carts cartViewer, payments paymentResolver, bookings bookingLookup, logg *logger.Logger) (*Machine, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart viewer required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment resolver required")
	}
	if bookings == nil {
		return nil, fmt.Errorf("booking lookup required")
	}
	return &Machine{carts: carts, payments: payments, bookings: bookings, logg: logg}, nil
}

// Resolve performs the single transition for a navigation event.
func (m *Machine) Resolve(ctx context.Context, input ResolveInput) (*Resolution, error) {
	step, err := LocationToStep(input.Path, input.Query)
	if err != nil {
		return nil, err
	}

	if step == enums.StepPayment {
		if res, handled := m.resolveRedirectReturn(ctx, input); handled {
			return res, nil
		}
		// bare success flag with no correlation ids: verify the booking
		// server-side instead of trusting the provider return
		if input.Query.Get(paramSuccess) != "" {
			return m.resolveConfirmation(ctx, input)
		}
	}

	view, err := m.carts.View(ctx, input.Owner)
	if err != nil {
		return nil, err
	}

	switch step {
	case enums.StepCart:
		if len(view.Lines) == 0 {
			return &Resolution{Step: step, View: ViewEmptyCart, Cart: view}, nil
		}
		return &Resolution{Step: step, View: ViewStep, Cart: view}, nil

	case enums.StepCheckout, enums.StepPayment:
		// had items, now gone: mid-flow abandonment or a stale reload
		if len(view.Lines) == 0 {
			return &Resolution{Step: step, View: ViewSessionExpired}, nil
		}
		res := &Resolution{Step: step, View: ViewStep, Cart: view}
		if step == enums.StepPayment {
			res.Banner = bannerFromQuery(input.Query)
			res.Session = m.sessionIfPresent(ctx, input.SessionID)
			if res.Banner != "" && input.SessionID != "" {
				// provider error return: reset the latch so the user
				// can try again without a reload
				if err := m.payments.Teardown(ctx, input.SessionID); err != nil {
					m.warn(ctx, "tearing down payment session after provider error")
				}
				res.Session = nil
			}
		}
		return res, nil

	case enums.StepConfirmation:
		return m.resolveConfirmation(ctx, input)

	default:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "unhandled checkout step")
	}
}

// resolveRedirectReturn short-circuits into finalize when the location
// carries both provider correlation parameters. Nothing else renders until
// this resolves.
func (m *Machine) resolveRedirectReturn(ctx context.Context, input ResolveInput) (*Resolution, bool) {
	paymentID := input.Query.Get(paramPaymentID)
	payerID := input.Query.Get(paramPayerID)
	if paymentID == "" || payerID == "" {
		return nil, false
	}

	result, err := m.payments.Finalize(ctx, payment.FinalizeRequest{
		SessionID:     input.SessionID,
		CorrelationID: paymentID,
		PayerID:       payerID,
	})
	if err != nil {
		// a refresh of the return URL lands here after the first finalize
		// already captured and destroyed the session; the completed booking
		// is the durable record, so render it instead of an error
		if isSessionGone(err) && input.SessionID != "" {
			if record, lookupErr := m.bookings.CompletedForSession(ctx, input.SessionID); lookupErr == nil {
				return &Resolution{
					Step:    enums.StepConfirmation,
					View:    ViewConfirmation,
					Booking: record,
				}, true
			}
		}
		// surface the failure on the payment step and reset the latch
		if input.SessionID != "" {
			if tdErr := m.payments.Teardown(ctx, input.SessionID); tdErr != nil {
				m.warn(ctx, "tearing down payment session after failed finalize")
			}
		}
		return &Resolution{
			Step:   enums.StepPayment,
			View:   ViewReturning,
			Banner: publicMessage(err),
		}, true
	}

	return &Resolution{
		Step:    enums.StepConfirmation,
		View:    ViewConfirmation,
		Booking: result.Booking,
	}, true
}

// resolveConfirmation never trusts a bare success flag: the booking must
// exist server-side for the session before the confirmation renders.
func (m *Machine) resolveConfirmation(ctx context.Context, input ResolveInput) (*Resolution, error) {
	if input.SessionID == "" {
		return &Resolution{Step: enums.StepConfirmation, View: ViewSessionExpired}, nil
	}

	record, err := m.bookings.CompletedForSession(ctx, input.SessionID)
	if err != nil {
		if pkgerrors.As(err).Code() == pkgerrors.CodeNotFound {
			return &Resolution{Step: enums.StepConfirmation, View: ViewSessionExpired}, nil
		}
		return nil, err
	}
	return &Resolution{Step: enums.StepConfirmation, View: ViewConfirmation, Booking: record}, nil
}

// CheckoutDraft is the data frozen when the flow leaves the cart step.
type CheckoutDraft struct {
	TotalGuests   int                          `json:"total_guests"`
	GuestCounts   map[string]types.GuestCounts `json:"guest_counts"`
	SelectedDates map[string]string            `json:"selected_dates"`
	Cart          *cart.View                   `json:"cart"`
}

// BeginCheckout gates the cart-to-checkout transition on the validation
// engine and freezes guest totals and dates into the draft.
func (m *Machine) BeginCheckout(ctx context.Context, owner cart.Owner) (*CheckoutDraft, error) {
	view, err := m.carts.View(ctx, owner)
	if err != nil {
		return nil, err
	}

	inputs := make([]pkgcheckout.LineValidationInput, 0, len(view.Lines))
	for _, line := range view.Lines {
		adults := line.Guests.Adults
		if line.Guests.IsZero() {
			adults = types.DefaultGuestCounts().Adults
		}
		inputs = append(inputs, pkgcheckout.LineValidationInput{
			TourID:          line.TourID,
			TourTitle:       line.Snapshot.Title,
			HasSelectedDate: line.SelectedDate != nil && !line.SelectedDate.IsZero(),
			Adults:          adults,
		})
	}
	if err := pkgcheckout.EnsureCanProceed(inputs); err != nil {
		return nil, err
	}

	draft := &CheckoutDraft{
		TotalGuests:   view.TotalGuests,
		GuestCounts:   make(map[string]types.GuestCounts, len(view.Lines)),
		SelectedDates: make(map[string]string, len(view.Lines)),
		Cart:          view,
	}
	for _, line := range view.Lines {
		counts := line.Guests
		if counts.IsZero() {
			counts = types.DefaultGuestCounts()
		}
		draft.GuestCounts[line.TourID] = counts
		if line.SelectedDate != nil {
			draft.SelectedDates[line.TourID] = line.SelectedDate.Format("2006-01-02")
		}
	}
	return draft, nil
}

// LeavePayment tears down the payment session on back navigation out of the
// payment step. The next forward pass starts from scratch.
func (m *Machine) LeavePayment(ctx context.Context, sessionID string) error {
	return m.payments.Teardown(ctx, sessionID)
}

func (m *Machine) sessionIfPresent(ctx context.Context, sessionID string) *payment.Session {
	if sessionID == "" {
		return nil
	}
	session, err := m.payments.Session(ctx, sessionID)
	if err != nil {
		return nil
	}
	return session
}

func (m *Machine) warn(ctx context.Context, msg string) {
	if m.logg != nil {
		m.logg.Warn(ctx, msg)
	}
}

func bannerFromQuery(query url.Values) string {
	if msg := query.Get(paramError); msg != "" {
		return msg
	}
	return ""
}

func isSessionGone(err error) bool {
	typed := pkgerrors.As(err)
	return typed != nil && typed.Code() == pkgerrors.CodeSessionGone
}

func publicMessage(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "payment could not be completed"
	}
	if msg := typed.Message(); msg != "" {
		return msg
	}
	return pkgerrors.MetadataFor(typed.Code()).PublicMessage
}
