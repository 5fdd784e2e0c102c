package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/GoStans-Co/gostans-backend/api/middleware"
	"github.com/GoStans-Co/gostans-backend/api/responses"
	"github.com/GoStans-Co/gostans-backend/api/validators"
	cartsvc "github.com/GoStans-Co/gostans-backend/internal/cart"
	"github.com/GoStans-Co/gostans-backend/pkg/enums"
	pkgerrors "github.com/GoStans-Co/gostans-backend/pkg/errors"
	"github.com/GoStans-Co/gostans-backend/pkg/logger"
	"github.com/GoStans-Co/gostans-backend/pkg/types"
)

const dateLayout = "2006-01-02"

func ownerOrReject(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (cartsvc.Owner, bool) {
	owner, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart owner missing: provide a bearer token or X-GS-Session header"))
		return cartsvc.Owner{}, false
	}
	return owner, true
}

// CartView returns the assembled cart for the request's owner.
func CartView(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerOrReject(w, r, logg)
		if !ok {
			return
		}

		view, err := svc.View(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type addCartLineRequest struct {
	TourID       string              `json:"tour_id" validate:"required"`
	Title        string              `json:"title" validate:"required"`
	UnitPrice    decimal.Decimal     `json:"unit_price" validate:"required"`
	Currency     string              `json:"currency" validate:"required,len=3"`
	ImageURL     string              `json:"image_url"`
	DurationDays int                 `json:"duration_days" validate:"min=0"`
	Quantity     int                 `json:"quantity" validate:"min=0"`
	SelectedDate *string             `json:"selected_date"`
	Guests       *guestCountsPayload `json:"guests"`
}

type guestCountsPayload struct {
	Adults   int `json:"adults" validate:"min=0"`
	Children int `json:"children" validate:"min=0"`
	Infants  int `json:"infants" validate:"min=0"`
}

func (p addCartLineRequest) toInput() (cartsvc.AddInput, error) {
	input := cartsvc.AddInput{
		TourID: strings.TrimSpace(p.TourID),
		Snapshot: types.TourSnapshot{
			Title:        strings.TrimSpace(p.Title),
			UnitPrice:    p.UnitPrice,
			Currency:     strings.ToUpper(strings.TrimSpace(p.Currency)),
			ImageURL:     p.ImageURL,
			DurationDays: p.DurationDays,
		},
		Quantity: p.Quantity,
	}

	if p.SelectedDate != nil && *p.SelectedDate != "" {
		parsed, err := time.Parse(dateLayout, *p.SelectedDate)
		if err != nil {
			return cartsvc.AddInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "selected_date must be YYYY-MM-DD")
		}
		input.SelectedDate = &parsed
	}

	if p.Guests != nil {
		input.Guests = &types.GuestCounts{
			Adults:   p.Guests.Adults,
			Children: p.Guests.Children,
			Infants:  p.Guests.Infants,
		}
	}
	return input, nil
}

// CartAdd appends a tour to the cart or bumps its quantity.
func CartAdd(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerOrReject(w, r, logg)
		if !ok {
			return
		}

		var payload addCartLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Add(r.Context(), owner, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// CartRemove deletes one line by tour id.
func CartRemove(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerOrReject(w, r, logg)
		if !ok {
			return
		}

		tourID := strings.TrimSpace(chi.URLParam(r, "tourID"))
		if tourID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "tour id required"))
			return
		}

		view, err := svc.Remove(r.Context(), owner, tourID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type setQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// CartSetQuantity replaces a line's quantity.
func CartSetQuantity(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerOrReject(w, r, logg)
		if !ok {
			return
		}

		tourID := strings.TrimSpace(chi.URLParam(r, "tourID"))
		var payload setQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.SetQuantity(r.Context(), owner, tourID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type adjustGuestsRequest struct {
	Kind  string `json:"kind" validate:"required"`
	Delta int    `json:"delta" validate:"required"`
}

// CartAdjustGuests steps one occupancy bucket up or down.
func CartAdjustGuests(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerOrReject(w, r, logg)
		if !ok {
			return
		}

		tourID := strings.TrimSpace(chi.URLParam(r, "tourID"))
		var payload adjustGuestsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind, err := enums.ParseGuestKind(payload.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid guest kind"))
			return
		}

		view, err := svc.AdjustGuestCount(r.Context(), owner, tourID, kind, payload.Delta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type setDateRequest struct {
	SelectedDate string `json:"selected_date" validate:"required"`
}

// CartSetDate records the departure date for a line.
func CartSetDate(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerOrReject(w, r, logg)
		if !ok {
			return
		}

		tourID := strings.TrimSpace(chi.URLParam(r, "tourID"))
		var payload setDateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		date, err := time.Parse(dateLayout, payload.SelectedDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "selected_date must be YYYY-MM-DD"))
			return
		}

		view, err := svc.SetDate(r.Context(), owner, tourID, date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type packageModeRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// CartSetPackageMode toggles the family package flag.
func CartSetPackageMode(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerOrReject(w, r, logg)
		if !ok {
			return
		}

		var payload packageModeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.SetPackageMode(r.Context(), owner, *payload.Enabled)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartClear empties the cart.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerOrReject(w, r, logg)
		if !ok {
			return
		}

		if err := svc.Clear(r.Context(), owner); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}

type cartSyncer interface {
	Sync(ctx context.Context, userID uuid.UUID, guestSessionID string) (*cartsvc.SyncResult, error)
}

type syncCartRequest struct {
	GuestSessionID string `json:"guest_session_id" validate:"required"`
}

type syncCartResponse struct {
	Cart    *cartsvc.View `json:"cart"`
	Pushed  int           `json:"pushed"`
	Skipped bool          `json:"skipped"`
}

// CartSync merges the guest cart into the signed-in user's cart. Requires
// authentication; the guest session comes from the request body so the
// client can hand over the pre-sign-in identity explicitly.
func CartSync(svc cartSyncer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := middleware.UserIDFromContext(r.Context())
		userID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign-in required"))
			return
		}

		var payload syncCartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Sync(r.Context(), userID, payload.GuestSessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, syncCartResponse{
			Cart:    result.View,
			Pushed:  result.Pushed,
			Skipped: result.Skipped,
		})
	}
}
