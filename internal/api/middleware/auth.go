package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const principalContextKey contextKey = "principal"

// Identity headers set by the upstream auth gateway. User authentication
// itself happens outside this service; by the time a request reaches us the
// gateway has already verified the caller and stamped these.
const (
	HeaderUser = "X-Sealbox-User"
	HeaderRole = "X-Sealbox-Role"
)

// Principal is the authenticated caller as asserted by the gateway.
type Principal struct {
	ID   string
	Role string // account-level role, e.g. "user" or "admin"
}

// RequireAuth rejects requests that carry no gateway identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderUser)
		if userID == "" {
			jsonError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		p := &Principal{ID: userID, Role: r.Header.Get(HeaderRole)}
		ctx := context.WithValue(r.Context(), principalContextKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin guards the privileged endpoints: the bearer token must match
// the configured bcrypt hash. An empty hash disables the endpoints outright.
func RequireAdmin(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				jsonError(w, http.StatusNotFound, "not found")
				return
			}

			token := bearerToken(r)
			if token == "" {
				jsonError(w, http.StatusUnauthorized, "admin token required")
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)); err != nil {
				jsonError(w, http.StatusForbidden, "invalid admin token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetPrincipal retrieves the authenticated principal from the request context.
func GetPrincipal(ctx context.Context) *Principal {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	if !ok {
		return nil
	}
	return p
}
