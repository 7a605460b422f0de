package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/prismbi/prism/internal/service"
)

type contextKeyAuth string

// AuthPrincipalKey is the context key for the authenticated principal.
const AuthPrincipalKey contextKeyAuth = "auth_principal"

// Principal is the authenticated identity behind a request: an admin
// (JWT) or an API key bound to a role.
type Principal struct {
	Type    string // "admin" or "api_key"
	AdminID int64
	RoleID  int64
	KeyID   int64
	IsAdmin bool
}

// Authenticate validates request credentials. Two schemes are accepted:
// an API key in the X-API-Key header (BI tools and service consumers),
// or a JWT bearer token in Authorization (admins). The resulting
// Principal is attached to the request context; role enforcement happens
// downstream, per route.
func Authenticate(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var principal *Principal

			if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
				p, err := authSvc.ValidateAPIKey(r.Context(), apiKey)
				if err != nil {
					writeAuthError(w, http.StatusUnauthorized, apiKeyErrorMessage(err))
					return
				}
				principal = &Principal{
					Type:   "api_key",
					RoleID: p.RoleID,
					KeyID:  p.KeyID,
				}
			}

			if principal == nil {
				if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
					token := strings.TrimPrefix(authHeader, "Bearer ")
					p, err := authSvc.ValidateJWT(r.Context(), token)
					if err != nil {
						writeAuthError(w, http.StatusUnauthorized, "Invalid token")
						return
					}
					principal = &Principal{
						Type:    "admin",
						AdminID: p.AdminID,
						IsAdmin: true,
					}
				}
			}

			if principal == nil {
				writeAuthError(w, http.StatusUnauthorized,
					"Authentication required. Provide X-API-Key header or Bearer token.")
				return
			}

			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// apiKeyErrorMessage distinguishes revoked and expired keys from unknown
// ones, so a BI operator rotating keys sees why their integration broke.
// All three still return 401.
func apiKeyErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrKeyRevoked):
		return "API key has been revoked"
	case errors.Is(err, service.ErrTokenExpired):
		return "API key has expired"
	default:
		return "Invalid API key"
	}
}

// RequireAdmin enforces admin-level access. It must run after Authenticate
// in the middleware chain.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r.Context())
			if principal == nil || !principal.IsAdmin {
				writeAuthError(w, http.StatusForbidden, "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context, or
// nil for an unauthenticated request.
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

// writeAuthError renders the handler package's error envelope by hand;
// importing handler here would cycle. Messages are fixed strings, never
// request-derived, so no escaping is needed.
func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":{"code":` + strconv.Itoa(status) + `,"message":"` + message + `"}}`))
}
