package cart

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/GoStans-Co/gostans-backend/pkg/db/models"
	pkgerrors "github.com/GoStans-Co/gostans-backend/pkg/errors"
	"github.com/GoStans-Co/gostans-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// UserStore persists authenticated carts in postgres via the repository.
type UserStore struct {
	repo CartRepository
	tx   txRunner
}

// NewUserStore builds the postgres-backed cart store.
func NewUserStore(repo CartRepository, tx txRunner) (*UserStore, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &UserStore{repo: repo, tx: tx}, nil
}

// Load returns the user's cart, or an empty cart when none exists.
func (s *UserStore) Load(ctx context.Context, owner Owner) (*Cart, error) {
	if owner.UserID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	record, err := s.repo.FindByUser(ctx, *owner.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Cart{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	cart := recordToCart(record)
	cart.Normalize()
	return cart, nil
}

// Save upserts the cart record and replaces its items atomically.
func (s *UserStore) Save(ctx context.Context, owner Owner, cart *Cart) error {
	if owner.UserID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	cart.Normalize()

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		record, err := txRepo.FindByUser(ctx, *owner.UserID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if record == nil {
			record = &models.CartRecord{UserID: *owner.UserID}
			if record, err = txRepo.Create(ctx, record); err != nil {
				return err
			}
		}

		record.FamilyPackage = cart.FamilyPackage
		if _, err := txRepo.Update(ctx, record); err != nil {
			return err
		}

		return txRepo.ReplaceItems(ctx, record.ID, cartToItems(cart))
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
	}
	return nil
}

// Clear removes the user's cart entirely.
func (s *UserStore) Clear(ctx context.Context, owner Owner) error {
	if owner.UserID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if err := s.repo.DeleteByUser(ctx, *owner.UserID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func recordToCart(record *models.CartRecord) *Cart {
	cart := &Cart{FamilyPackage: record.FamilyPackage}
	for _, item := range record.Items {
		cart.Lines = append(cart.Lines, itemToLine(item))
	}
	return cart
}

func itemToLine(item models.CartItem) Line {
	return Line{
		TourID: item.TourID,
		Snapshot: types.TourSnapshot{
			Title:        item.Title,
			UnitPrice:    item.UnitPrice,
			Currency:     item.Currency,
			ImageURL:     item.ImageURL,
			DurationDays: item.DurationDays,
		},
		Quantity:     item.Quantity,
		SelectedDate: item.SelectedDate,
		Guests:       item.Guests,
		AddedAt:      item.AddedAt,
	}
}

func cartToItems(cart *Cart) []models.CartItem {
	items := make([]models.CartItem, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		items = append(items, models.CartItem{
			TourID:       line.TourID,
			Title:        line.Snapshot.Title,
			UnitPrice:    line.Snapshot.UnitPrice,
			Currency:     line.Snapshot.Currency,
			ImageURL:     line.Snapshot.ImageURL,
			DurationDays: line.Snapshot.DurationDays,
			Quantity:     line.Quantity,
			SelectedDate: line.SelectedDate,
			Guests:       line.Guests,
			AddedAt:      line.AddedAt,
		})
	}
	return items
}
