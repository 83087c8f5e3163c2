package middleware

import (
	apperrors "bookshelf/pkg/errors"
	httputil "bookshelf/pkg/http"
	"bookshelf/pkg/logger"
	"context"
	"net/http"
	"sync"
	"time"
)

// timeoutWriter drops writes that arrive after the deadline fired.
type timeoutWriter struct {
	http.ResponseWriter
	mu         sync.Mutex
	timedOut   bool
	written    bool
	statusCode int
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut || tw.written {
		return
	}

	tw.statusCode = code
	tw.written = true
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}

	if !tw.written {
		tw.statusCode = http.StatusOK
		tw.written = true
	}

	return tw.ResponseWriter.Write(b)
}

func (tw *timeoutWriter) timeout() {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.timedOut = true
}

// RequestTimeout bounds a request with a deadline the repositories inherit.
// A handler still running at the deadline gets a 503 TIMEOUT envelope and
// its later writes are dropped.
func RequestTimeout(timeout time.Duration, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			r = r.WithContext(ctx)

			tw := &timeoutWriter{
				ResponseWriter: w,
				timedOut:       false,
				written:        false,
			}

			done := make(chan struct{})
			panicked := make(chan any, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- p
					}
				}()
				next.ServeHTTP(tw, r)
				close(done)
			}()

			select {
			case p := <-panicked:
				// re-raise on the serving goroutine so Recovery sees it
				panic(p)
			case <-done:
				return
			case <-ctx.Done():
				tw.timeout()

				args := []any{
					"request_id", requestID(w, r),
					"method", r.Method,
					"path", r.URL.Path,
					"timeout", timeout,
				}
				tw.mu.Lock()
				if !tw.written {
					err := apperrors.New(apperrors.CodeTimeout, "Request timed out", http.StatusServiceUnavailable)
					if writeErr := httputil.WriteError(w, err); writeErr != nil {
						args = append(args, "write_error", writeErr)
					}
					tw.written = true
				}
				tw.mu.Unlock()
				log.Warn("Request timed out", args...)
			}
		})
	}
}
