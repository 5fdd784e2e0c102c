package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/GoStans-Co/gostans-backend/pkg/errors"
	"github.com/GoStans-Co/gostans-backend/pkg/redis"
)

// guestCartStore is the redis surface the guest store needs.
type guestCartStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	GuestCartKey(guestSessionID string) string
}

// GuestStore keeps unauthenticated carts as JSON documents in redis,
// expiring after the configured TTL of inactivity.
type GuestStore struct {
	store guestCartStore
	ttl   time.Duration
}

// NewGuestStore builds the redis-backed guest cart store.
func NewGuestStore(store guestCartStore, ttl time.Duration) (*GuestStore, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("guest cart ttl must be positive")
	}
	return &GuestStore{store: store, ttl: ttl}, nil
}

// Load returns the guest's cart, or an empty cart when none exists.
func (s *GuestStore) Load(ctx context.Context, owner Owner) (*Cart, error) {
	if owner.GuestSessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest session id is required")
	}

	raw, err := s.store.Get(ctx, s.store.GuestCartKey(owner.GuestSessionID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &Cart{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart")
	}

	var cart Cart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode guest cart")
	}
	cart.Normalize()
	return &cart, nil
}

// Save writes the cart back, refreshing the inactivity TTL.
func (s *GuestStore) Save(ctx context.Context, owner Owner, cart *Cart) error {
	if owner.GuestSessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "guest session id is required")
	}

	cart.Normalize()

	payload, err := json.Marshal(cart)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode guest cart")
	}
	if err := s.store.Set(ctx, s.store.GuestCartKey(owner.GuestSessionID), payload, s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist guest cart")
	}
	return nil
}

// Clear drops the guest cart document.
func (s *GuestStore) Clear(ctx context.Context, owner Owner) error {
	if owner.GuestSessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "guest session id is required")
	}
	if err := s.store.Del(ctx, s.store.GuestCartKey(owner.GuestSessionID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear guest cart")
	}
	return nil
}
