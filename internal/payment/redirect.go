package payment

import (
	"context"
	"fmt"
	"net/url"

	"github.com/GoStans-Co/gostans-backend/pkg/enums"
	pkgerrors "github.com/GoStans-Co/gostans-backend/pkg/errors"
	"github.com/GoStans-Co/gostans-backend/pkg/paypal"
)

// paypalAPI is the slice of the PayPal client the strategy uses.
type paypalAPI interface {
	CreateOrder(ctx context.Context, input paypal.CreateOrderInput) (*paypal.OrderResult, error)
	CaptureOrder(ctx context.Context, orderID, payerID string) (*paypal.CaptureResult, error)
}

// RedirectStrategy implements the approve-externally payment flow: create an
// order, send the user to the provider's approval page, capture on return.
type RedirectStrategy struct {
	api           paypalAPI
	returnBaseURL string
}

// NewRedirectStrategy builds the PayPal-backed redirect strategy.
// returnBaseURL is the storefront origin the provider redirects back to.
func NewRedirectStrategy(api paypalAPI, returnBaseURL string) (*RedirectStrategy, error) {
	if api == nil {
		return nil, fmt.Errorf("paypal client required")
	}
	if returnBaseURL == "" {
		return nil, fmt.Errorf("return base url required")
	}
	return &RedirectStrategy{api: api, returnBaseURL: returnBaseURL}, nil
}

// Provider identifies the strategy.
func (s *RedirectStrategy) Provider() enums.PaymentProvider {
	return enums.ProviderRedirect
}

// Initialize creates the provider order and stores the approval link and
// correlation id on the session.
func (s *RedirectStrategy) Initialize(ctx context.Context, session *Session) error {
	result, err := s.api.CreateOrder(ctx, paypal.CreateOrderInput{
		Amount:      session.Amount,
		Currency:    session.Currency,
		Description: orderDescription(session),
		ReferenceID: session.ID,
		ReturnURL:   s.returnURL(session.ID),
		CancelURL:   s.cancelURL(),
	})
	if err != nil {
		return err
	}
	if result.ApprovalURL == "" {
		return pkgerrors.New(pkgerrors.CodePayment, "provider returned no approval link")
	}

	session.CorrelationID = result.OrderID
	session.ApprovalURL = result.ApprovalURL
	return nil
}

// Finalize captures the approved order. The correlation id from the return
// URL must match the one stored at initialize time.
func (s *RedirectStrategy) Finalize(ctx context.Context, session *Session, input FinalizeInput) (*Details, error) {
	if input.CorrelationID == "" || input.PayerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment and payer identifiers are required")
	}
	if input.CorrelationID != session.CorrelationID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment identifier does not match this session")
	}

	result, err := s.api.CaptureOrder(ctx, session.CorrelationID, input.PayerID)
	if err != nil {
		return nil, err
	}

	return &Details{
		Provider:      enums.ProviderRedirect,
		Status:        enums.PaymentStatusCompleted,
		TransactionID: result.CaptureID,
		Amount:        result.Amount,
		Currency:      result.Currency,
	}, nil
}

func (s *RedirectStrategy) returnURL(sessionID string) string {
	return s.returnBaseURL + "/checkout/payment?session=" + url.QueryEscape(sessionID)
}

func (s *RedirectStrategy) cancelURL() string {
	return s.returnBaseURL + "/checkout/payment?cancelled=true"
}

func orderDescription(session *Session) string {
	if len(session.CartSnapshot) == 1 {
		return session.CartSnapshot[0].Title
	}
	return fmt.Sprintf("%d tours", len(session.CartSnapshot))
}
