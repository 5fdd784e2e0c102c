package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stubLatch struct {
	setnx   map[string]bool
	deleted []string
}

func (s *stubLatch) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if v, ok := s.setnx[key]; ok {
		return v, nil
	}
	return true, nil
}

func (s *stubLatch) Del(_ context.Context, keys ...string) error {
	s.deleted = append(s.deleted, keys...)
	return nil
}

func (s *stubLatch) CooldownKey(scope, id string) string {
	return "gs:cooldown:" + scope + ":" + id
}

func (s *stubLatch) IdempotencyKey(scope, id string) string {
	return "gs:idempotency:" + scope + ":" + id
}

// failSaveStore rejects any save whose cart contains the poisoned tour id.
type failSaveStore struct {
	*memStore
	poison string
}

func (f *failSaveStore) Save(ctx context.Context, owner Owner, cart *Cart) error {
	for _, line := range cart.Lines {
		if line.TourID == f.poison {
			return errors.New("write rejected")
		}
	}
	return f.memStore.Save(ctx, owner, cart)
}

func newSyncFixture(t *testing.T, users Store, latch *stubLatch) (*SyncService, Service) {
	t.Helper()
	guests := newMemStore()
	carts, err := NewService(users, guests)
	if err != nil {
		t.Fatalf("building cart service: %v", err)
	}
	sync, err := NewSyncService(carts, latch, 10*time.Second, nil)
	if err != nil {
		t.Fatalf("building sync service: %v", err)
	}
	return sync, carts
}

func seedLine(t *testing.T, carts Service, owner Owner, tourID string) {
	t.Helper()
	if _, err := carts.Add(context.Background(), owner, AddInput{TourID: tourID, Snapshot: snapshot("100")}); err != nil {
		t.Fatalf("seeding line %s: %v", tourID, err)
	}
}

func TestSyncPushesGuestOnlyLinesAndDropsGuestCart(t *testing.T) {
	t.Parallel()

	latch := &stubLatch{}
	sync, carts := newSyncFixture(t, newMemStore(), latch)
	ctx := context.Background()

	userID := uuid.New()
	userOwner := Owner{UserID: &userID}
	guest := guestOwner()

	seedLine(t, carts, userOwner, "shared")
	seedLine(t, carts, guest, "shared")
	seedLine(t, carts, guest, "guest-only")

	result, err := sync.Sync(ctx, userID, guest.GuestSessionID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if result.Skipped {
		t.Fatal("expected sync to run")
	}
	if result.Pushed != 1 {
		t.Fatalf("expected 1 pushed line, got %d", result.Pushed)
	}
	if len(result.View.Lines) != 2 {
		t.Fatalf("expected adopted cart with 2 lines, got %d", len(result.View.Lines))
	}

	guestView, err := carts.View(ctx, guest)
	if err != nil {
		t.Fatalf("guest view: %v", err)
	}
	if len(guestView.Lines) != 0 {
		t.Fatal("expected guest cart dropped after adoption")
	}
	if len(latch.deleted) == 0 {
		t.Fatal("expected in-progress latch released")
	}
}

func TestSyncSharedLineKeepsServerQuantity(t *testing.T) {
	t.Parallel()

	latch := &stubLatch{}
	sync, carts := newSyncFixture(t, newMemStore(), latch)
	ctx := context.Background()

	userID := uuid.New()
	userOwner := Owner{UserID: &userID}
	guest := guestOwner()

	seedLine(t, carts, userOwner, "shared")
	if _, err := carts.Add(ctx, guest, AddInput{TourID: "shared", Snapshot: snapshot("100"), Quantity: 4}); err != nil {
		t.Fatalf("seeding guest line: %v", err)
	}

	result, err := sync.Sync(ctx, userID, guest.GuestSessionID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if result.Pushed != 0 {
		t.Fatalf("expected no pushes for a shared tour, got %d", result.Pushed)
	}
	if result.View.Lines[0].Quantity != 1 {
		t.Fatalf("expected server quantity to win, got %d", result.View.Lines[0].Quantity)
	}
}

func TestSyncCooldownCollapsesRepeatCalls(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	latch := &stubLatch{}
	latch.setnx = map[string]bool{
		latch.CooldownKey("cart-sync", userID.String()): false,
	}
	sync, carts := newSyncFixture(t, newMemStore(), latch)
	guest := guestOwner()
	seedLine(t, carts, guest, "guest-only")

	result, err := sync.Sync(context.Background(), userID, guest.GuestSessionID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if !result.Skipped {
		t.Fatal("expected cooldown to skip the sync")
	}
	guestView, err := carts.View(context.Background(), guest)
	if err != nil {
		t.Fatalf("guest view: %v", err)
	}
	if len(guestView.Lines) != 1 {
		t.Fatal("expected guest cart untouched on skipped sync")
	}
}

func TestSyncOverlappingCallCollapses(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	latch := &stubLatch{}
	latch.setnx = map[string]bool{
		latch.IdempotencyKey("cart-sync", userID.String()): false,
	}
	sync, carts := newSyncFixture(t, newMemStore(), latch)
	guest := guestOwner()
	seedLine(t, carts, guest, "guest-only")

	result, err := sync.Sync(context.Background(), userID, guest.GuestSessionID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !result.Skipped {
		t.Fatal("expected overlapping sync to collapse")
	}
}

// failLoadStore rejects the next N loads before recovering.
type failLoadStore struct {
	*memStore
	failures int
}

func (f *failLoadStore) Load(ctx context.Context, owner Owner) (*Cart, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("store unavailable")
	}
	return f.memStore.Load(ctx, owner)
}

func TestSyncFailureReleasesCooldown(t *testing.T) {
	t.Parallel()

	users := &failLoadStore{memStore: newMemStore(), failures: 1}
	latch := &stubLatch{}
	sync, carts := newSyncFixture(t, users, latch)
	ctx := context.Background()

	userID := uuid.New()
	guest := guestOwner()
	seedLine(t, carts, guest, "guest-only")

	cooldownKey := latch.CooldownKey("cart-sync", userID.String())

	if _, err := sync.Sync(ctx, userID, guest.GuestSessionID); err == nil {
		t.Fatal("expected sync to fail while the store is down")
	}

	released := false
	for _, key := range latch.deleted {
		if key == cooldownKey {
			released = true
		}
	}
	if !released {
		t.Fatal("expected cooldown released after failed sync")
	}

	// the immediate retry reconciles instead of being silently skipped
	result, err := sync.Sync(ctx, userID, guest.GuestSessionID)
	if err != nil {
		t.Fatalf("retry sync: %v", err)
	}
	if result.Skipped {
		t.Fatal("expected retry to run after a failed sync")
	}
	if result.Pushed != 1 {
		t.Fatalf("expected guest line pushed on retry, got %d", result.Pushed)
	}

	// a completed sync keeps its cooldown claim
	for _, key := range latch.deleted[len(latch.deleted)-1:] {
		if key == cooldownKey {
			t.Fatal("expected cooldown kept after successful sync")
		}
	}
}

func TestSyncIsolatesPerLineFailures(t *testing.T) {
	t.Parallel()

	users := &failSaveStore{memStore: newMemStore(), poison: "bad"}
	latch := &stubLatch{}
	sync, carts := newSyncFixture(t, users, latch)
	ctx := context.Background()

	userID := uuid.New()
	guest := guestOwner()
	seedLine(t, carts, guest, "bad")
	seedLine(t, carts, guest, "good")

	result, err := sync.Sync(ctx, userID, guest.GuestSessionID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if result.PushErrors == nil {
		t.Fatal("expected aggregated push errors")
	}
	if result.Pushed != 1 {
		t.Fatalf("expected the healthy line pushed despite the failure, got %d", result.Pushed)
	}
}
