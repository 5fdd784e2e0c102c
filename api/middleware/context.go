package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/GoStans-Co/gostans-backend/internal/cart"
)

type contextKey string

const (
	ctxUserID       contextKey = "user_id"
	ctxGuestSession contextKey = "guest_session"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func GuestSessionFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxGuestSession).(string); ok {
		return v
	}
	return ""
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithGuestSession injects the anonymous session identifier into the context.
func WithGuestSession(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxGuestSession, sessionID)
}

// OwnerFromContext resolves the cart owner seeded by the Identity
// middleware. A signed-in user wins over a guest session header.
func OwnerFromContext(ctx context.Context) (cart.Owner, bool) {
	if raw := UserIDFromContext(ctx); raw != "" {
		id, err := uuid.Parse(raw)
		if err == nil {
			return cart.Owner{UserID: &id}, true
		}
	}
	if session := GuestSessionFromContext(ctx); session != "" {
		return cart.Owner{GuestSessionID: session}, true
	}
	return cart.Owner{}, false
}
