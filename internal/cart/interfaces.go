package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/GoStans-Co/gostans-backend/pkg/db/models"
)

// Owner identifies whose cart an operation targets: an authenticated user
// (postgres-backed) or an anonymous guest session (redis-backed).
type Owner struct {
	UserID         *uuid.UUID
	GuestSessionID string
}

// IsGuest reports whether the owner is an unauthenticated session.
func (o Owner) IsGuest() bool {
	return o.UserID == nil
}

// Store is the persistence surface the cart service reads and writes
// through. Load returns an empty cart when none exists yet.
type Store interface {
	Load(ctx context.Context, owner Owner) (*Cart, error)
	Save(ctx context.Context, owner Owner, cart *Cart) error
	Clear(ctx context.Context, owner Owner) error
}

// CartRepository defines the postgres persistence surface behind the
// authenticated store.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error)
	Create(ctx context.Context, record *models.CartRecord) (*models.CartRecord, error)
	Update(ctx context.Context, record *models.CartRecord) (*models.CartRecord, error)
	ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}
