package origin

import (
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
)

// AllowList is a concurrency-safe set of allowed origins.
type AllowList struct {
	set atomic.Pointer[map[string]struct{}]
}

// New returns an AllowList containing origins.
func New(origins []string) *AllowList {
	a := &AllowList{}
	a.Update(origins)
	return a
}

// Update replaces the allowed origins.
func (a *AllowList) Update(origins []string) {
	m := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if n := normalize(o); n != "" {
			m[n] = struct{}{}
		}
	}
	a.set.Store(&m)
}

// Origins returns the current allowed origins in normalized form.
func (a *AllowList) Origins() []string {
	m := *a.set.Load()
	out := make([]string, 0, len(m))
	for o := range m {
		out = append(out, o)
	}
	return out
}

// Allowed reports whether origin is on the list. An empty origin is allowed.
func (a *AllowList) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	n := normalize(origin)
	if n == "" {
		return false
	}
	_, ok := (*a.set.Load())[n]
	return ok
}

// CheckOrigin matches the websocket.Upgrader.CheckOrigin signature.
func (a *AllowList) CheckOrigin(r *http.Request) bool {
	return a.Allowed(r.Header.Get("Origin"))
}

// Middleware applies CORS headers for allowed origins and answers
// preflight requests.
func (a *AllowList) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o := r.Header.Get("Origin")
		if o == "" {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Add("Vary", "Origin")
		allowed := a.Allowed(o)
		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", o)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if !allowed {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// normalize lowercases scheme and host and strips any path or trailing
// slash, so "https://App.example.com/" matches "https://app.example.com".
func normalize(o string) string {
	o = strings.TrimSpace(o)
	if o == "" {
		return ""
	}
	u, err := url.Parse(o)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}
