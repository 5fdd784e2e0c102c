package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/GoStans-Co/gostans-backend/pkg/checkout"
	"github.com/GoStans-Co/gostans-backend/pkg/enums"
	pkgerrors "github.com/GoStans-Co/gostans-backend/pkg/errors"
	"github.com/GoStans-Co/gostans-backend/pkg/pricing"
	"github.com/GoStans-Co/gostans-backend/pkg/types"
)

// Service exposes cart mutation and read operations for both authenticated
// users and guest sessions.
type Service interface {
	View(ctx context.Context, owner Owner) (*View, error)
	Add(ctx context.Context, owner Owner, input AddInput) (*View, error)
	Remove(ctx context.Context, owner Owner, tourID string) (*View, error)
	SetQuantity(ctx context.Context, owner Owner, tourID string, quantity int) (*View, error)
	AdjustGuestCount(ctx context.Context, owner Owner, tourID string, kind enums.GuestKind, delta int) (*View, error)
	SetDate(ctx context.Context, owner Owner, tourID string, date time.Time) (*View, error)
	SetPackageMode(ctx context.Context, owner Owner, enabled bool) (*View, error)
	Clear(ctx context.Context, owner Owner) error
}

// View is the assembled cart state returned to callers: lines plus totals,
// per-line validation flags, and the checkout gate.
type View struct {
	Lines         []Line          `json:"lines"`
	FamilyPackage bool            `json:"family_package"`
	Totals        pricing.Totals  `json:"totals"`
	LineErrors    map[string]bool `json:"line_errors"`
	CanProceed    bool            `json:"can_proceed"`
	TotalGuests   int             `json:"total_guests"`
}

// AddInput captures one "add to cart" action.
type AddInput struct {
	TourID       string
	Snapshot     types.TourSnapshot
	Quantity     int
	SelectedDate *time.Time
	Guests       *types.GuestCounts
}

type service struct {
	users  Store
	guests Store
	now    func() time.Time
}

// NewService builds a cart service over the two storage backends.
func NewService(users, guests Store) (Service, error) {
	if users == nil {
		return nil, fmt.Errorf("user store required")
	}
	if guests == nil {
		return nil, fmt.Errorf("guest store required")
	}
	return &service{users: users, guests: guests, now: time.Now}, nil
}

func (s *service) storeFor(owner Owner) Store {
	if owner.IsGuest() {
		return s.guests
	}
	return s.users
}

// View loads and assembles the current cart state.
func (s *service) View(ctx context.Context, owner Owner) (*View, error) {
	cart, err := s.storeFor(owner).Load(ctx, owner)
	if err != nil {
		return nil, err
	}
	return assembleView(cart), nil
}

// Add appends a new line, or bumps quantity when the tour is already in the
// cart. Guest counts default to a single adult.
func (s *service) Add(ctx context.Context, owner Owner, input AddInput) (*View, error) {
	if input.TourID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tour id is required")
	}
	if input.Snapshot.UnitPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}
	qty := input.Quantity
	if qty < 1 {
		qty = 1
	}

	return s.mutate(ctx, owner, func(cart *Cart) error {
		if line := cart.Find(input.TourID); line != nil {
			line.Quantity += qty
			return nil
		}

		guests := types.DefaultGuestCounts()
		if input.Guests != nil && !input.Guests.IsZero() {
			guests = *input.Guests
		}
		cart.Lines = append(cart.Lines, Line{
			TourID:       input.TourID,
			Snapshot:     input.Snapshot,
			Quantity:     qty,
			SelectedDate: input.SelectedDate,
			Guests:       guests,
			AddedAt:      s.now(),
		})
		return nil
	})
}

// Remove drops the line unconditionally.
func (s *service) Remove(ctx context.Context, owner Owner, tourID string) (*View, error) {
	return s.mutate(ctx, owner, func(cart *Cart) error {
		kept := cart.Lines[:0]
		for _, line := range cart.Lines {
			if line.TourID != tourID {
				kept = append(kept, line)
			}
		}
		cart.Lines = kept
		return nil
	})
}

// SetQuantity replaces a line's quantity.
func (s *service) SetQuantity(ctx context.Context, owner Owner, tourID string, quantity int) (*View, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	return s.mutate(ctx, owner, func(cart *Cart) error {
		line := cart.Find(tourID)
		if line == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}
		line.Quantity = quantity
		return nil
	})
}

// AdjustGuestCount applies a delta to one occupancy bucket, clamping at
// zero. When the family package is active on the line, any change that
// would push combined occupancy past the cap is silently dropped.
func (s *service) AdjustGuestCount(ctx context.Context, owner Owner, tourID string, kind enums.GuestKind, delta int) (*View, error) {
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown guest kind")
	}
	return s.mutate(ctx, owner, func(cart *Cart) error {
		line := cart.Find(tourID)
		if line == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}

		counts := line.Guests
		if counts.IsZero() {
			counts = types.DefaultGuestCounts()
		}

		next := counts
		switch kind {
		case enums.GuestAdult:
			next.Adults = clampZero(next.Adults + delta)
		case enums.GuestChild:
			next.Children = clampZero(next.Children + delta)
		case enums.GuestInfant:
			next.Infants = clampZero(next.Infants + delta)
		}

		if cart.FamilyAppliesTo(tourID) && next.Total() > pricing.FamilyMaxOccupancy {
			// occupancy cap exceeded: keep the store unchanged
			return nil
		}

		line.Guests = next
		return nil
	})
}

// SetDate records the travel date for a line.
func (s *service) SetDate(ctx context.Context, owner Owner, tourID string, date time.Time) (*View, error) {
	if date.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "selected date is required")
	}
	return s.mutate(ctx, owner, func(cart *Cart) error {
		line := cart.Find(tourID)
		if line == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}
		selected := date
		line.SelectedDate = &selected
		return nil
	})
}

// SetPackageMode toggles the family package. Enabling it is rejected while
// the first line's occupancy already exceeds the cap.
func (s *service) SetPackageMode(ctx context.Context, owner Owner, enabled bool) (*View, error) {
	return s.mutate(ctx, owner, func(cart *Cart) error {
		if enabled {
			if cart.IsEmpty() {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			first := cart.Lines[0]
			counts := first.Guests
			if counts.IsZero() {
				counts = types.DefaultGuestCounts()
			}
			if counts.Total() > pricing.FamilyMaxOccupancy {
				return pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("family package allows at most %d guests", pricing.FamilyMaxOccupancy))
			}
		}
		cart.FamilyPackage = enabled
		return nil
	})
}

// Clear drops the whole cart. Used on successful payment and on logout.
func (s *service) Clear(ctx context.Context, owner Owner) error {
	return s.storeFor(owner).Clear(ctx, owner)
}

func (s *service) mutate(ctx context.Context, owner Owner, fn func(cart *Cart) error) (*View, error) {
	store := s.storeFor(owner)

	cart, err := store.Load(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := fn(cart); err != nil {
		return nil, err
	}
	if err := store.Save(ctx, owner, cart); err != nil {
		return nil, err
	}
	return assembleView(cart), nil
}

func assembleView(cart *Cart) *View {
	errs := checkout.ValidateLines(validationInputs(cart))
	return &View{
		Lines:         cart.Lines,
		FamilyPackage: cart.FamilyPackage,
		Totals:        cart.Totals(),
		LineErrors:    errs,
		CanProceed:    checkout.CanProceed(errs, len(cart.Lines)),
		TotalGuests:   cart.TotalGuests(),
	}
}

func validationInputs(cart *Cart) []checkout.LineValidationInput {
	inputs := make([]checkout.LineValidationInput, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		adults := line.Guests.Adults
		if line.Guests.IsZero() {
			adults = types.DefaultGuestCounts().Adults
		}
		inputs = append(inputs, checkout.LineValidationInput{
			TourID:          line.TourID,
			TourTitle:       line.Snapshot.Title,
			HasSelectedDate: line.SelectedDate != nil && !line.SelectedDate.IsZero(),
			Adults:          adults,
		})
	}
	return inputs
}

func clampZero(value int) int {
	if value < 0 {
		return 0
	}
	return value
}
