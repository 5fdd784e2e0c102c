package middleware

import (
	"fmt"
	"net/http"

	"github.com/GoStans-Co/gostans-backend/api/responses"
	pkgerrors "github.com/GoStans-Co/gostans-backend/pkg/errors"
	"github.com/GoStans-Co/gostans-backend/pkg/logger"
)

// Recoverer converts handler panics into a coded internal error response.
// http.ErrAbortHandler is rethrown so aborted streams stay aborted.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err := fmt.Errorf("panic: %v", rec)
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"panic":  rec,
						"method": r.Method,
						"path":   r.URL.Path,
					})
					logg.Error(ctx, "panic.recovered", err)
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
