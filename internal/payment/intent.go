package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/GoStans-Co/gostans-backend/pkg/enums"
	pkgerrors "github.com/GoStans-Co/gostans-backend/pkg/errors"
	stripepkg "github.com/GoStans-Co/gostans-backend/pkg/stripe"
)

// stripeIntentAPI is the slice of the Stripe API the strategy uses.
type stripeIntentAPI interface {
	CreateIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

// liveStripeAPI calls Stripe's package-level bindings, keyed globally by the
// stripe client wrapper at startup.
type liveStripeAPI struct{}

func (liveStripeAPI) CreateIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	params.Context = ctx
	return paymentintent.New(params)
}

func (liveStripeAPI) GetIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	return paymentintent.Get(id, params)
}

// IntentStrategy implements the card flow: create a payment intent, hand the
// client secret to the browser for confirmation, then verify the intent
// status server-side instead of trusting the client callback.
type IntentStrategy struct {
	api stripeIntentAPI
}

// NewIntentStrategy builds the Stripe-backed intent strategy. The wrapper
// client is required so the global API key has been validated and set.
func NewIntentStrategy(client *stripepkg.Client) (*IntentStrategy, error) {
	if client == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return &IntentStrategy{api: liveStripeAPI{}}, nil
}

// newIntentStrategyWithAPI exists for tests.
func newIntentStrategyWithAPI(api stripeIntentAPI) *IntentStrategy {
	return &IntentStrategy{api: api}
}

// Provider identifies the strategy.
func (s *IntentStrategy) Provider() enums.PaymentProvider {
	return enums.ProviderIntent
}

// Initialize creates the payment intent and stores its client secret on the
// session. A session already holding a secret is never re-initialized here;
// the orchestrator short-circuits before reaching this point.
func (s *IntentStrategy) Initialize(ctx context.Context, session *Session) error {
	if session.Amount.LessThanOrEqual(decimal.Zero) {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountToMinorUnits(session.Amount)),
		Currency: stripe.String("usd"),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("checkout_session", session.ID)

	intent, err := s.api.CreateIntent(ctx, params)
	if err != nil {
		return mapStripeError(err, "creating payment intent")
	}
	if intent.ClientSecret == "" {
		return pkgerrors.New(pkgerrors.CodePayment, "provider returned no client secret")
	}

	session.CorrelationID = intent.ID
	session.ClientSecret = intent.ClientSecret
	return nil
}

// Finalize verifies the confirmed intent server-side. The client secret is
// reused across retries; only a succeeded intent completes the payment.
func (s *IntentStrategy) Finalize(ctx context.Context, session *Session, input FinalizeInput) (*Details, error) {
	intentID := input.CorrelationID
	if intentID == "" {
		intentID = session.CorrelationID
	}
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	if session.CorrelationID != "" && intentID != session.CorrelationID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent does not match this session")
	}

	intent, err := s.api.GetIntent(ctx, intentID)
	if err != nil {
		return nil, mapStripeError(err, "retrieving payment intent")
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		msg := fmt.Sprintf("payment not completed (status %s)", intent.Status)
		if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			msg = intent.LastPaymentError.Msg
		}
		return nil, pkgerrors.New(pkgerrors.CodePayment, msg)
	}

	return &Details{
		Provider:      enums.ProviderIntent,
		Status:        enums.PaymentStatusCompleted,
		TransactionID: intent.ID,
		Amount:        minorUnitsToAmount(intent.Amount),
		Currency:      string(intent.Currency),
	}, nil
}

func amountToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func minorUnitsToAmount(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(100))
}

func mapStripeError(err error, action string) error {
	if stripeErr, ok := err.(*stripe.Error); ok {
		msg := stripeErr.Msg
		if msg == "" {
			msg = action + " failed"
		}
		return pkgerrors.Wrap(pkgerrors.CodePayment, err, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
