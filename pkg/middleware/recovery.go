package middleware

import (
	apperrors "bookshelf/pkg/errors"
	httputil "bookshelf/pkg/http"
	"bookshelf/pkg/logger"
	"fmt"
	"net/http"
	"runtime/debug"
)

// Recovery turns a handler panic into the standard INTERNAL_ERROR envelope.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}

				args := []any{
					"request_id", requestID(w, r),
					"error", p,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				}
				if caller, ok := IdentityFromContext(r.Context()); ok {
					args = append(args, "user_id", caller.UserID)
				}
				log.Error("Panic recovered", args...)

				err := apperrors.Internal("Panic while handling request", fmt.Errorf("%v", p))
				if writeErr := httputil.WriteError(w, err); writeErr != nil {
					log.Error("failed to write error response", "handler", "Recovery", "error", writeErr)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
