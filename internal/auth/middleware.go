package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Verifier validates access tokens.
type Verifier interface {
	VerifyAccess(token string) (string, error)
}

// Middleware enforces access-token authentication. The token is read from
// the accessToken cookie, falling back to an Authorization bearer header.
type Middleware struct {
	verifier Verifier
}

// NewMiddleware constructs Middleware.
func NewMiddleware(verifier Verifier) Middleware {
	return Middleware{verifier: verifier}
}

// Wrap attaches authentication handling to an http.Handler.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := m.verifier.VerifyAccess(tokenFromRequest(r))
		if err != nil {
			writeUnauthenticated(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(AccessCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}

func writeUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"type":    "unauthenticated",
		"message": "authentication required",
	})
}
