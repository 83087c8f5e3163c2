package middleware

import (
	"bookshelf/pkg/logger"
	"bookshelf/pkg/model"
	"context"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestInfoKey  contextKey = "request_info"
	RequestIDHeader            = "X-Request-ID"
)

// Ids forwarded by callers are kept when they look like ids; anything else is
// replaced so log lines stay greppable.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// requestInfo travels by pointer so the Guard, which runs inside the router,
// can attribute the request to a member for the completion line.
type requestInfo struct {
	mu       sync.Mutex
	id       string
	identity model.Identity
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.written = true
		rw.ResponseWriter.WriteHeader(statusCode)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func RequestLogging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get(RequestIDHeader)
			if !requestIDPattern.MatchString(requestID) {
				requestID = uuid.NewString()
			}

			w.Header().Set(RequestIDHeader, requestID)
			info := &requestInfo{id: requestID}
			r = r.WithContext(context.WithValue(r.Context(), requestInfoKey, info))

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     200,
				written:        false,
			}

			log.Debug("HTTP request started",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			next.ServeHTTP(wrapped, r)

			args := []any{
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if caller := info.caller(); caller.UserID != "" {
				args = append(args, "user_id", caller.UserID, "role", caller.Role)
			}

			switch {
			case wrapped.statusCode >= http.StatusInternalServerError:
				log.Error("HTTP request completed", args...)
			case wrapped.statusCode >= http.StatusBadRequest:
				log.Warn("HTTP request completed", args...)
			default:
				log.Info("HTTP request completed", args...)
			}
		})
	}
}

func (i *requestInfo) caller() model.Identity {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.identity
}

// WithRequestID attaches id to ctx for code running outside RequestLogging,
// such as CLI commands that publish events.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestInfoKey, &requestInfo{id: id})
}

// RequestIDFromContext returns the id assigned by RequestLogging, or "".
func RequestIDFromContext(ctx context.Context) string {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		return info.id
	}
	return ""
}

// noteCaller records the authenticated member on the request's log context.
func noteCaller(ctx context.Context, id model.Identity) {
	info, ok := ctx.Value(requestInfoKey).(*requestInfo)
	if !ok {
		return
	}
	info.mu.Lock()
	info.identity = id
	info.mu.Unlock()
}

// requestID prefers the context value and falls back to the response header
// for middleware that wraps RequestLogging.
func requestID(w http.ResponseWriter, r *http.Request) string {
	if id := RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return w.Header().Get(RequestIDHeader)
}
