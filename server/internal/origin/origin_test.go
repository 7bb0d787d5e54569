package origin

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
)

func TestAllowed(t *testing.T) {
	a := New([]string{"https://app.example.com", "http://localhost:3000/", "  ", "not a url"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"https://app.example.com", true},
		{"https://APP.example.com", true},
		{"https://app.example.com/", true},
		{"http://localhost:3000", true},
		{"http://app.example.com", false},
		{"https://evil.example.com", false},
		{"http://localhost:3001", false},
		{"null", false},
		{"", true},
	}
	for _, tt := range tests {
		if got := a.Allowed(tt.origin); got != tt.want {
			t.Errorf("Allowed(%q): got %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestUpdate_SwapsList(t *testing.T) {
	a := New([]string{"https://a.example"})
	a.Update([]string{"https://b.example"})

	if a.Allowed("https://a.example") {
		t.Error("old origin still allowed after Update")
	}
	if !a.Allowed("https://b.example") {
		t.Error("new origin not allowed after Update")
	}
	got := a.Origins()
	sort.Strings(got)
	if len(got) != 1 || got[0] != "https://b.example" {
		t.Errorf("Origins: got %v, want [https://b.example]", got)
	}
}

func TestEmptyList_RejectsBrowsers(t *testing.T) {
	a := New(nil)
	if a.Allowed("https://app.example.com") {
		t.Error("empty allow-list must reject every browser origin")
	}
}

func TestCheckOrigin(t *testing.T) {
	a := New([]string{"https://app.example.com"})
	r := httptest.NewRequest(http.MethodGet, "/realtime", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	if a.CheckOrigin(r) {
		t.Error("CheckOrigin: got true for disallowed origin")
	}
	r.Header.Set("Origin", "https://app.example.com")
	if !a.CheckOrigin(r) {
		t.Error("CheckOrigin: got false for allowed origin")
	}
}

func serve(a *AllowList, method, origin string, preflight bool) (*httptest.ResponseRecorder, bool) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	r := httptest.NewRequest(method, "/health", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	if preflight {
		r.Header.Set("Access-Control-Request-Method", "GET")
	}
	rr := httptest.NewRecorder()
	a.Middleware(next).ServeHTTP(rr, r)
	return rr, called
}

func TestMiddleware_AllowedOrigin(t *testing.T) {
	a := New([]string{"https://app.example.com"})
	rr, called := serve(a, http.MethodGet, "https://app.example.com", false)
	if !called {
		t.Fatal("next handler not called")
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin: got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials: got %q, want true", got)
	}
}

func TestMiddleware_DisallowedOrigin_NoHeaders(t *testing.T) {
	a := New([]string{"https://app.example.com"})
	rr, called := serve(a, http.MethodGet, "https://evil.example.com", false)
	if !called {
		t.Fatal("next handler not called")
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin: got %q, want empty", got)
	}
}

func TestMiddleware_Preflight(t *testing.T) {
	a := New([]string{"https://app.example.com"})

	rr, called := serve(a, http.MethodOptions, "https://app.example.com", true)
	if called {
		t.Error("preflight must not reach next handler")
	}
	if rr.Code != http.StatusNoContent {
		t.Errorf("allowed preflight status: got %d, want 204", rr.Code)
	}

	rr, _ = serve(a, http.MethodOptions, "https://evil.example.com", true)
	if rr.Code != http.StatusForbidden {
		t.Errorf("rejected preflight status: got %d, want 403", rr.Code)
	}
}

func TestMiddleware_NoOrigin_PassThrough(t *testing.T) {
	a := New(nil)
	rr, called := serve(a, http.MethodGet, "", false)
	if !called || rr.Code != http.StatusOK {
		t.Errorf("status: got %d (called=%v), want 200", rr.Code, called)
	}
	if rr.Header().Get("Vary") != "" {
		t.Error("Vary should not be set without an Origin header")
	}
}
