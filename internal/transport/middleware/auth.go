package middleware

import (
	"log/slog"
	"net/http"

	errors "github.com/thaohienhomes/phochat-payments/internal"
	"github.com/thaohienhomes/phochat-payments/internal/auth"
	"github.com/thaohienhomes/phochat-payments/internal/transport"
	"github.com/thaohienhomes/phochat-payments/pkg/logger"
)

// AdminTokenHeader carries the operator token for sweep triggers.
const AdminTokenHeader = "x-admin-token"

// OptionalUser puts the bearer token's subject and role into the request
// context when a valid token is present. Requests without a token pass
// through as guests; an invalid token is rejected.
func OptionalUser(verifier auth.TokenVerifier, lg *slog.Logger) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(lg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := transport.BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.ValidateToken(token)
			if err != nil {
				base.Logger.Warn("bearer token rejected", "error", err, "path", r.URL.Path)
				if err == auth.ErrTokenExpired {
					base.WriteAppError(w, errors.ErrTokenExpired)
				} else {
					base.WriteAppError(w, errors.ErrInvalidToken)
				}
				return
			}

			ctx := errors.ContextWithUserID(r.Context(), claims.UserID())
			if claims.Role != "" {
				ctx = errors.ContextWithRole(ctx, claims.Role)
			}
			ctx = logger.With(ctx, "userID", claims.UserID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests that OptionalUser left anonymous.
func RequireUser(lg *slog.Logger) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(lg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if errors.UserIDFromContext(r.Context()) == "" {
				base.WriteAppError(w, errors.ErrInvalidToken)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole admits authenticated callers holding role.
func RequireRole(role string, lg *slog.Logger) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(lg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if errors.UserIDFromContext(ctx) == "" {
				base.WriteAppError(w, errors.ErrInvalidToken)
				return
			}
			if errors.RoleFromContext(ctx) != role {
				base.Logger.Warn("access denied: missing role",
					"user_id", errors.UserIDFromContext(ctx),
					"required_role", role)
				base.WriteAppError(w, errors.ErrAdminRequired)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdminToken checks the operator token from the x-admin-token header
// or the token query parameter.
func RequireAdminToken(guard *auth.AdminTokenGuard, lg *slog.Logger) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(lg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(AdminTokenHeader)
			if provided == "" {
				provided = r.URL.Query().Get("token")
			}
			if !guard.Check(provided) {
				base.Logger.Warn("admin token rejected", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				base.WriteAppError(w, errors.ErrInvalidAdminToken)
				return
			}
			next.ServeHTTP(w, r.WithContext(errors.ContextWithRole(r.Context(), errors.RoleAdmin)))
		})
	}
}
