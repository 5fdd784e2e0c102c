package payment

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/GoStans-Co/gostans-backend/pkg/enums"
	pkgerrors "github.com/GoStans-Co/gostans-backend/pkg/errors"
	"github.com/GoStans-Co/gostans-backend/pkg/paypal"
	"github.com/GoStans-Co/gostans-backend/pkg/types"
)

type stubPayPalAPI struct {
	order      *paypal.OrderResult
	capture    *paypal.CaptureResult
	createErr  error
	captureErr error
	lastInput  paypal.CreateOrderInput
}

func (s *stubPayPalAPI) CreateOrder(_ context.Context, input paypal.CreateOrderInput) (*paypal.OrderResult, error) {
	s.lastInput = input
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.order, nil
}

func (s *stubPayPalAPI) CaptureOrder(_ context.Context, _, _ string) (*paypal.CaptureResult, error) {
	if s.captureErr != nil {
		return nil, s.captureErr
	}
	return s.capture, nil
}

func redirectSession() *Session {
	return &Session{
		ID:       "sess-1",
		Provider: enums.ProviderRedirect,
		Amount:   decimal.RequireFromString("110.00"),
		Currency: "USD",
		CartSnapshot: types.BookingLines{
			{TourID: "t1", Title: "Silk Road Classic", Quantity: 1},
		},
	}
}

func TestRedirectInitializeStoresApprovalLink(t *testing.T) {
	t.Parallel()

	api := &stubPayPalAPI{order: &paypal.OrderResult{
		OrderID:     "ORDER-1",
		ApprovalURL: "https://paypal.example/approve/ORDER-1",
	}}
	strategy, err := NewRedirectStrategy(api, "https://gostans.example")
	if err != nil {
		t.Fatalf("building strategy: %v", err)
	}

	session := redirectSession()
	if err := strategy.Initialize(context.Background(), session); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if session.CorrelationID != "ORDER-1" {
		t.Fatalf("expected order id stored, got %q", session.CorrelationID)
	}
	if session.ApprovalURL == "" {
		t.Fatal("expected approval url stored")
	}
	if !strings.HasPrefix(api.lastInput.ReturnURL, "https://gostans.example/checkout/payment?") {
		t.Fatalf("unexpected return url %q", api.lastInput.ReturnURL)
	}
	if api.lastInput.Description != "Silk Road Classic" {
		t.Fatalf("expected single-tour description, got %q", api.lastInput.Description)
	}
}

func TestRedirectFinalizeRequiresMatchingCorrelation(t *testing.T) {
	t.Parallel()

	strategy, err := NewRedirectStrategy(&stubPayPalAPI{}, "https://gostans.example")
	if err != nil {
		t.Fatalf("building strategy: %v", err)
	}

	session := redirectSession()
	session.CorrelationID = "ORDER-1"

	_, err = strategy.Finalize(context.Background(), session, FinalizeInput{CorrelationID: "ORDER-2", PayerID: "PAYER-7"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = strategy.Finalize(context.Background(), session, FinalizeInput{CorrelationID: "ORDER-1"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing payer, got %v", err)
	}
}

func TestRedirectFinalizeCapturesOrder(t *testing.T) {
	t.Parallel()

	api := &stubPayPalAPI{capture: &paypal.CaptureResult{
		OrderID:   "ORDER-1",
		CaptureID: "CAP-9",
		Status:    "COMPLETED",
		Amount:    decimal.RequireFromString("110.00"),
		Currency:  "USD",
	}}
	strategy, err := NewRedirectStrategy(api, "https://gostans.example")
	if err != nil {
		t.Fatalf("building strategy: %v", err)
	}

	session := redirectSession()
	session.CorrelationID = "ORDER-1"

	details, err := strategy.Finalize(context.Background(), session, FinalizeInput{CorrelationID: "ORDER-1", PayerID: "PAYER-7"})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if details.TransactionID != "CAP-9" {
		t.Fatalf("expected capture id, got %q", details.TransactionID)
	}
	if details.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", details.Status)
	}
}
