package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/models"
	apperrors "github.com/ukydev/fleet-maintenance/pkg/errors"
	"github.com/ukydev/fleet-maintenance/pkg/response"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	UserContextKey contextKey = "user"
)

// skipAuthPaths are reachable without a token.
var skipAuthPaths = []string{
	"/api/auth/login",
	"/api/auth/register",
	"/health",
}

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	authService *auth.Service
}

func NewAuthMiddleware(authService *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Authenticate validates the bearer token and stores its claims on the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipAuth(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.ErrorCode(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, "authorization header required")
			return
		}

		claims, err := m.authService.ValidateToken(authHeader)
		if err != nil {
			response.Error(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims)))
	})
}

// RequireRole rejects requests whose user holds none of roles.
func (m *AuthMiddleware) RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				response.ErrorCode(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, "user context not found")
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			response.ErrorCode(w, http.StatusForbidden, apperrors.CodeForbidden, "insufficient permissions")
		})
	}
}

// RequirePermission checks the user's role grants action.
func (m *AuthMiddleware) RequirePermission(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				response.ErrorCode(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, "user context not found")
				return
			}

			user := &models.User{Role: claims.Role}
			if !user.HasPermission(action) {
				response.ErrorCode(w, http.StatusForbidden, apperrors.CodeForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUser returns ctx carrying claims.
func WithUser(ctx context.Context, claims *models.Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

// GetUserFromContext extracts user claims from request context
func GetUserFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*models.Claims)
	return claims, ok
}

func shouldSkipAuth(path string) bool {
	for _, skipPath := range skipAuthPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

// Chain wraps h with middlewares; the first one listed runs first.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
