package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/GoStans-Co/gostans-backend/pkg/logger"
)

const syncLatchTTL = time.Minute

// syncLatchStore is the redis surface guarding sync throttling.
type syncLatchStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	CooldownKey(scope, id string) string
	IdempotencyKey(scope, id string) string
}

// SyncService reconciles a guest cart with the authenticated server cart at
// login time. Repeated calls inside the cooldown window and overlapping
// calls collapse into a single reconciliation.
type SyncService struct {
	carts    Service
	latch    syncLatchStore
	cooldown time.Duration
	logg     *logger.Logger
}

// SyncResult reports what the reconciliation did. PushErrors aggregates
// per-line push failures; a partial failure does not abort the sync.
type SyncResult struct {
	View       *View
	Pushed     int
	Skipped    bool
	PushErrors error
}

// NewSyncService builds the guest-to-user cart reconciler.
func NewSyncService(carts Service, latch syncLatchStore, cooldown time.Duration, logg *logger.Logger) (*SyncService, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if latch == nil {
		return nil, fmt.Errorf("latch store required")
	}
	if cooldown <= 0 {
		return nil, fmt.Errorf("cooldown must be positive")
	}
	return &SyncService{carts: carts, latch: latch, cooldown: cooldown, logg: logg}, nil
}

// Sync pushes guest-only lines to the user's server cart, adopts the server
// cart as the new state, and drops the guest copy.
func (s *SyncService) Sync(ctx context.Context, userID uuid.UUID, guestSessionID string) (*SyncResult, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if guestSessionID == "" {
		return nil, fmt.Errorf("guest session id is required")
	}

	userOwner := Owner{UserID: &userID}
	guestOwner := Owner{GuestSessionID: guestSessionID}

	// cooldown window: a recent completed sync makes this one a no-op.
	// the key is claimed up front but released unless the reconciliation
	// finishes, so a failed sync does not burn the window
	cooldownKey := s.latch.CooldownKey("cart-sync", userID.String())
	fresh, err := s.latch.SetNX(ctx, cooldownKey, time.Now().UTC().Format(time.RFC3339), s.cooldown)
	if err != nil {
		return nil, fmt.Errorf("checking sync cooldown: %w", err)
	}
	if !fresh {
		view, err := s.carts.View(ctx, userOwner)
		if err != nil {
			return nil, err
		}
		return &SyncResult{View: view, Skipped: true}, nil
	}
	completed := false
	defer func() {
		if completed {
			return
		}
		if err := s.latch.Del(context.WithoutCancel(ctx), cooldownKey); err != nil && s.logg != nil {
			s.logg.Warn(ctx, "releasing cart-sync cooldown after failed sync")
		}
	}()

	// in-progress latch: overlapping syncs collapse into the first one
	lockKey := s.latch.IdempotencyKey("cart-sync", userID.String())
	acquired, err := s.latch.SetNX(ctx, lockKey, "1", syncLatchTTL)
	if err != nil {
		return nil, fmt.Errorf("acquiring sync latch: %w", err)
	}
	if !acquired {
		view, err := s.carts.View(ctx, userOwner)
		if err != nil {
			return nil, err
		}
		return &SyncResult{View: view, Skipped: true}, nil
	}
	defer func() {
		if err := s.latch.Del(context.WithoutCancel(ctx), lockKey); err != nil && s.logg != nil {
			s.logg.Warn(ctx, "releasing cart-sync latch failed")
		}
	}()

	serverView, err := s.carts.View(ctx, userOwner)
	if err != nil {
		return nil, err
	}
	guestView, err := s.carts.View(ctx, guestOwner)
	if err != nil {
		return nil, err
	}

	serverTours := make(map[string]struct{}, len(serverView.Lines))
	for _, line := range serverView.Lines {
		serverTours[line.TourID] = struct{}{}
	}

	result := &SyncResult{}
	for _, line := range guestView.Lines {
		if _, exists := serverTours[line.TourID]; exists {
			continue
		}
		guests := line.Guests
		if _, err := s.carts.Add(ctx, userOwner, AddInput{
			TourID:       line.TourID,
			Snapshot:     line.Snapshot,
			Quantity:     line.Quantity,
			SelectedDate: line.SelectedDate,
			Guests:       &guests,
		}); err != nil {
			// each push failure is isolated; the rest continue
			result.PushErrors = multierr.Append(result.PushErrors,
				fmt.Errorf("push line %s: %w", line.TourID, err))
			if s.logg != nil {
				s.logg.Error(ctx, "cart sync: pushing guest line failed", err)
			}
			continue
		}
		result.Pushed++
	}

	view, err := s.carts.View(ctx, userOwner)
	if err != nil {
		return nil, err
	}
	result.View = view

	if err := s.carts.Clear(ctx, guestOwner); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "cart sync: dropping guest cart failed")
	}

	completed = true
	return result, nil
}
