package middleware

import (
	"net/http"
	"strings"

	"github.com/GoStans-Co/gostans-backend/api/responses"
	pkgAuth "github.com/GoStans-Co/gostans-backend/pkg/auth"
	"github.com/GoStans-Co/gostans-backend/pkg/config"
	pkgerrors "github.com/GoStans-Co/gostans-backend/pkg/errors"
	"github.com/GoStans-Co/gostans-backend/pkg/logger"
)

const guestSessionHeader = "X-GS-Session"

// Identity resolves who owns the cart for this request. A bearer token
// identifies a signed-in user; otherwise the anonymous session header
// identifies a guest. Absent both, the request proceeds without an owner
// and handlers that need one reject it.
func Identity(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw != "" {
				token := raw
				if strings.HasPrefix(strings.ToLower(token), "bearer ") {
					token = strings.TrimSpace(token[7:])
				}
				if token == "" {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
					return
				}

				claims, err := pkgAuth.ParseAccessToken(cfg, token)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}

				ctx = WithUserID(ctx, claims.UserID.String())
				if logg != nil {
					ctx = logg.WithUserID(ctx, claims.UserID.String())
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if session := strings.TrimSpace(r.Header.Get(guestSessionHeader)); session != "" {
				ctx = WithGuestSession(ctx, session)
				if logg != nil {
					ctx = logg.WithField(ctx, "guest_session", session)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser gates endpoints that only make sense for a signed-in user,
// such as the sign-in cart merge.
func RequireUser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserIDFromContext(r.Context()) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign-in required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
