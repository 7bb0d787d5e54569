package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// Gate enforces the shared-secret bearer check on internal endpoints.
type Gate struct {
	secret   []byte
	onReject func(*http.Request)
}

// NewGate returns a Gate expecting secret. onReject, if non-nil, is called
// for every rejected request (used for metrics).
func NewGate(secret string, onReject func(*http.Request)) *Gate {
	return &Gate{secret: []byte(secret), onReject: onReject}
}

// Check reports whether r carries exactly "Authorization: Bearer <secret>".
func (g *Gate) Check(r *http.Request) bool {
	if len(g.secret) == 0 {
		return false
	}
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, bearerPrefix) {
		return false
	}
	got := []byte(h[len(bearerPrefix):])
	return subtle.ConstantTimeCompare(got, g.secret) == 1
}

// Wrap returns a handler that rejects unauthenticated requests with 401
// and passes the rest to next.
func (g *Gate) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Check(r) {
			if g.onReject != nil {
				g.onReject(r)
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="realtime"`)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck
				"ok":    false,
				"error": "unauthorized",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
