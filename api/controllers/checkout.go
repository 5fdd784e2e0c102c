package controllers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/GoStans-Co/gostans-backend/api/middleware"
	"github.com/GoStans-Co/gostans-backend/api/responses"
	"github.com/GoStans-Co/gostans-backend/api/validators"
	"github.com/GoStans-Co/gostans-backend/internal/booking"
	checkoutsvc "github.com/GoStans-Co/gostans-backend/internal/checkout"
	"github.com/GoStans-Co/gostans-backend/internal/payment"
	"github.com/GoStans-Co/gostans-backend/pkg/enums"
	pkgerrors "github.com/GoStans-Co/gostans-backend/pkg/errors"
	"github.com/GoStans-Co/gostans-backend/pkg/logger"
	"github.com/GoStans-Co/gostans-backend/pkg/types"
)

type resolveRequest struct {
	Path      string            `json:"path" validate:"required"`
	Query     map[string]string `json:"query"`
	SessionID string            `json:"session_id"`
}

// CheckoutResolve turns a navigation event into the view the client should
// render. Refresh, direct entry, and redirect returns all land here.
func CheckoutResolve(machine *checkoutsvc.Machine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload resolveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		owner, _ := middleware.OwnerFromContext(r.Context())

		query := url.Values{}
		for key, value := range payload.Query {
			query.Set(key, value)
		}

		resolution, err := machine.Resolve(r.Context(), checkoutsvc.ResolveInput{
			Path:      payload.Path,
			Query:     query,
			Owner:     owner,
			SessionID: strings.TrimSpace(payload.SessionID),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resolution)
	}
}

// CheckoutBegin gates the cart-to-checkout transition and freezes the draft.
func CheckoutBegin(machine *checkoutsvc.Machine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerOrReject(w, r, logg)
		if !ok {
			return
		}

		draft, err := machine.BeginCheckout(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, draft)
	}
}

type paymentOrchestrator interface {
	Initialize(ctx context.Context, input payment.InitializeInput) (*payment.Session, error)
	Finalize(ctx context.Context, req payment.FinalizeRequest) (*payment.Result, error)
}

type participantPayload struct {
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	DateOfBirth string `json:"date_of_birth"`
	Email       string `json:"email" validate:"omitempty,email"`
}

type initializePaymentRequest struct {
	Provider     string               `json:"provider" validate:"required"`
	SessionID    string               `json:"session_id"`
	Participants []participantPayload `json:"participants" validate:"dive"`
}

type initializePaymentResponse struct {
	SessionID    string `json:"session_id"`
	Provider     string `json:"provider"`
	ApprovalURL  string `json:"approval_url,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
}

// PaymentInitialize creates the provider-side payment for a checkout
// session. Reuses the session id if the client sends one so a retry after a
// dropped response stays idempotent.
func PaymentInitialize(orch paymentOrchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerOrReject(w, r, logg)
		if !ok {
			return
		}

		var payload initializePaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		provider, err := enums.ParsePaymentProvider(payload.Provider)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment provider"))
			return
		}

		sessionID := strings.TrimSpace(payload.SessionID)
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		participants := make([]types.Participant, len(payload.Participants))
		for i, p := range payload.Participants {
			participants[i] = types.Participant{
				FirstName:   strings.TrimSpace(p.FirstName),
				LastName:    strings.TrimSpace(p.LastName),
				DateOfBirth: p.DateOfBirth,
				Email:       p.Email,
			}
		}

		session, err := orch.Initialize(r.Context(), payment.InitializeInput{
			SessionID:    sessionID,
			Provider:     provider,
			Owner:        owner,
			Participants: participants,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, initializePaymentResponse{
			SessionID:    session.ID,
			Provider:     session.Provider.String(),
			ApprovalURL:  session.ApprovalURL,
			ClientSecret: session.ClientSecret,
			Amount:       session.Amount.String(),
			Currency:     session.Currency,
		})
	}
}

type finalizePaymentRequest struct {
	SessionID     string `json:"session_id" validate:"required"`
	CorrelationID string `json:"correlation_id"`
	PayerID       string `json:"payer_id"`
}

// PaymentFinalize completes the payment server-side and returns the booking.
func PaymentFinalize(orch paymentOrchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload finalizePaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := orch.Finalize(r.Context(), payment.FinalizeRequest{
			SessionID:     payload.SessionID,
			CorrelationID: payload.CorrelationID,
			PayerID:       payload.PayerID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type teardownPaymentRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// PaymentTeardown abandons the payment session, for back navigation out of
// the payment step.
func PaymentTeardown(machine *checkoutsvc.Machine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload teardownPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := machine.LeavePayment(r.Context(), payload.SessionID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "abandoned"})
	}
}

// BookingByReference fetches a confirmed booking by its public reference.
func BookingByReference(svc booking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reference := strings.TrimSpace(chi.URLParam(r, "reference"))
		if reference == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "booking reference required"))
			return
		}

		record, err := svc.GetByReference(r.Context(), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}
