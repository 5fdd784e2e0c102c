package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/GoStans-Co/gostans-backend/pkg/enums"
	pkgerrors "github.com/GoStans-Co/gostans-backend/pkg/errors"
	"github.com/GoStans-Co/gostans-backend/pkg/redis"
	"github.com/GoStans-Co/gostans-backend/pkg/types"
)

// Session is one checkout attempt's ephemeral payment state. It lives in
// redis under the checkout session id and expires with the session TTL.
// Initialized is the idempotency state: it flips through the orchestrator
// only, never directly by callers.
type Session struct {
	ID            string                `json:"id"`
	Provider      enums.PaymentProvider `json:"provider"`
	Initialized   bool                  `json:"initialized"`
	CorrelationID string                `json:"correlation_id,omitempty"`
	ClientSecret  string                `json:"client_secret,omitempty"`
	ApprovalURL   string                `json:"approval_url,omitempty"`
	Status        enums.PaymentStatus   `json:"status"`
	Amount        decimal.Decimal       `json:"amount"`
	Currency      string                `json:"currency"`
	TotalGuests   int                   `json:"total_guests"`
	Participants  []types.Participant   `json:"participants,omitempty"`
	CartSnapshot  types.BookingLines    `json:"cart_snapshot"`
	UserID        *uuid.UUID            `json:"user_id,omitempty"`
	GuestSession  string                `json:"guest_session,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// sessionRedis is the redis surface the session store needs.
type sessionRedis interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	PaymentSessionKey(sessionID string) string
}

// SessionStore keeps payment sessions in redis with the checkout TTL.
type SessionStore struct {
	store sessionRedis
	ttl   time.Duration
}

// NewSessionStore builds the redis-backed payment session store.
func NewSessionStore(store sessionRedis, ttl time.Duration) (*SessionStore, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &SessionStore{store: store, ttl: ttl}, nil
}

// TTL reports the configured session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Load returns the payment session, or a session-expired error when the key
// is gone. An expired TTL and an explicit teardown are indistinguishable.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	raw, err := s.store.Get(ctx, s.store.PaymentSessionKey(sessionID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, pkgerrors.New(pkgerrors.CodeSessionGone, "payment session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment session")
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode payment session")
	}
	return &session, nil
}

// Save writes the session back, restarting its TTL.
func (s *SessionStore) Save(ctx context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode payment session")
	}
	if err := s.store.Set(ctx, s.store.PaymentSessionKey(session.ID), payload, s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment session")
	}
	return nil
}

// Delete destroys the session outright.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if err := s.store.Del(ctx, s.store.PaymentSessionKey(sessionID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete payment session")
	}
	return nil
}
