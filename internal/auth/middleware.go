package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tahmid/notestack/internal/model"
)

// contextKey is an unexported type for context keys in this package, so no
// other package can read or shadow the identity we store on the request.
type contextKey string

const identityKey contextKey = "identity"

// RequireAuth enforces authentication on gated routes.
//
// It reads the "Authorization: Bearer <token>" header, validates the JWT, and
// stores the asserted identity in the request context. A missing, malformed,
// expired, or tampered token ends the request with 401 before the handler
// runs.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := extractIdentity(r, tokens)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized,
					`{"error":"unauthenticated","message":"valid authentication required"}`)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates admin-only routes. Must be chained after RequireAuth:
// a request with a valid token but a non-admin role claim gets 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized,
				`{"error":"unauthenticated","message":"valid authentication required"}`)
			return
		}
		if id.Role != model.RoleAdmin {
			writeAuthError(w, http.StatusForbidden,
				`{"error":"forbidden","message":"admin access required"}`)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeAuthError sends a pre-built JSON error body. The middleware can't use
// the handler package's helpers without an import cycle.
func writeAuthError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// IdentityFromContext retrieves the authenticated identity from the request
// context. Returns (zero, false) on anonymous requests.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

var errNoToken = errors.New("auth: no bearer token")

// extractIdentity reads and validates the bearer token from the
// Authorization header.
func extractIdentity(r *http.Request, tokens *TokenService) (Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Identity{}, errNoToken
	}

	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenStr == "" {
		return Identity{}, errNoToken
	}

	return tokens.Validate(tokenStr)
}
