package middleware

import (
	"bookshelf/internal/policy"
	apperrors "bookshelf/pkg/errors"
	httputil "bookshelf/pkg/http"
	"bookshelf/pkg/logger"
	"bookshelf/pkg/model"
	"context"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
)

const IdentityKey contextKey = "identity"

// Authenticator resolves a bearer token to the caller's identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (model.Identity, error)
}

func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(model.Identity)
	return id, ok
}

func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Guard wraps httprouter handles with authentication and permission checks.
type Guard struct {
	auth   Authenticator
	policy *policy.Policy
	log    *logger.Logger
}

func NewGuard(auth Authenticator, p *policy.Policy, log *logger.Logger) *Guard {
	return &Guard{
		auth:   auth,
		policy: p,
		log:    log,
	}
}

// Authenticated rejects requests without a valid session with 401.
func (g *Guard) Authenticated(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id, ok := g.identify(w, r)
		if !ok {
			return
		}
		next(w, r.WithContext(WithIdentity(r.Context(), id)), ps)
	}
}

// Require authenticates the caller and rejects roles the policy does not
// grant perm with 403.
func (g *Guard) Require(perm policy.Permission, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id, ok := g.identify(w, r)
		if !ok {
			return
		}

		if !g.policy.Allows(id.Role, perm) {
			g.log.Warn("Permission denied",
				"request_id", RequestIDFromContext(r.Context()),
				"user_id", id.UserID,
				"role", id.Role,
				"permission", perm,
				"path", r.URL.Path,
			)
			g.reject(w, "Require", apperrors.Forbidden("Insufficient permissions"))
			return
		}

		next(w, r.WithContext(WithIdentity(r.Context(), id)), ps)
	}
}

func (g *Guard) identify(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	token := BearerToken(r)
	if token == "" {
		g.reject(w, "identify", apperrors.Unauthorized("Authentication required"))
		return model.Identity{}, false
	}

	id, err := g.auth.Authenticate(r.Context(), token)
	if err != nil {
		if !apperrors.IsAppError(err) {
			g.log.Error("Failed to authenticate request",
				"request_id", RequestIDFromContext(r.Context()),
				"error", err,
			)
		}
		g.reject(w, "identify", err)
		return model.Identity{}, false
	}

	noteCaller(r.Context(), id)
	return id, true
}

func (g *Guard) reject(w http.ResponseWriter, operation string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		g.log.Error("failed to write error response", "handler", "Guard", "operation", operation, "error", writeErr)
	}
}
