package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/signalworks/storefront/internal/platform/httpx"
	"github.com/signalworks/storefront/internal/shared"
)

// Middleware attaches the bearer identity to the request context.
type Middleware struct {
	logger  *slog.Logger
	service *Service
}

// NewMiddleware builds the auth middleware.
func NewMiddleware(logger *slog.Logger, service *Service) *Middleware {
	return &Middleware{logger: logger, service: service}
}

// Authenticate resolves an optional bearer token. Requests without a token
// proceed anonymously; a present but invalid token is rejected.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "expected bearer token")
			return
		}
		claims, err := m.service.Parse(strings.TrimSpace(raw))
		if err != nil {
			if m.logger != nil {
				m.logger.Debug("rejected bearer token", slog.String("path", r.URL.Path))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid token")
			return
		}
		ctx := shared.ContextWithActor(r.Context(), claims.Actor())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser rejects anonymous requests.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !shared.ActorFromContext(r.Context()).IsUser() {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff rejects callers without the staff role.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := shared.ActorFromContext(r.Context())
		if !actor.IsUser() {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		if !actor.IsStaff() {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "staff only")
			return
		}
		next.ServeHTTP(w, r)
	})
}
