package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/taskhub/realtime/pkg/emit"
	"github.com/taskhub/realtime/pkg/token"
	"github.com/taskhub/realtime/server/internal/auth"
	"github.com/taskhub/realtime/server/internal/config"
)

func TestToken_MintsVerifiableToken(t *testing.T) {
	t.Setenv(config.DefaultJWTSecretEnv, "cli-secret")

	var out bytes.Buffer
	if err := run(context.Background(), []string{"token", "--user", "42", "--ttl", "1m"}, &out); err != nil {
		t.Fatalf("run token: %v", err)
	}
	var got struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expiresAt"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}

	v := auth.NewVerifier("cli-secret", token.DefaultAudience, token.DefaultIssuer, 0)
	uid, err := v.Verify(got.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if uid != "42" {
		t.Errorf("user: got %q, want 42", uid)
	}
	if got.ExpiresAt == "" {
		t.Error("expiresAt missing")
	}
}

func TestToken_Errors(t *testing.T) {
	t.Setenv(config.DefaultJWTSecretEnv, "")
	if err := run(context.Background(), []string{"token", "--user", "42"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error without secret")
	}

	t.Setenv(config.DefaultJWTSecretEnv, "s")
	if err := run(context.Background(), []string{"token"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error without --user")
	}
}

func TestEmit_PostsRequest(t *testing.T) {
	t.Setenv(config.DefaultEmitSecretEnv, "emit-secret")

	var got emit.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer emit-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&got) //nolint:errcheck
		json.NewEncoder(w).Encode(emit.Response{OK: true, Recipients: 2}) //nolint:errcheck
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := run(context.Background(), []string{
		"emit", "--scope", "users", "--event", "x", "--users", "a, b,a",
		"--payload", `{"k":1}`, "--url", srv.URL + "/",
	}, &out)
	if err != nil {
		t.Fatalf("run emit: %v", err)
	}
	if got.Scope != emit.ScopeUsers || got.Event != "x" {
		t.Errorf("request: got %+v", got)
	}
	if len(got.UserIDs) != 3 {
		t.Errorf("userIds: got %v, want 3 entries", got.UserIDs)
	}
	if string(got.Payload) != `{"k":1}` {
		t.Errorf("payload: got %s", got.Payload)
	}
	if !strings.Contains(out.String(), `"recipients":2`) {
		t.Errorf("output: got %q", out.String())
	}
}

func TestEmit_RejectsBadInput(t *testing.T) {
	t.Setenv(config.DefaultEmitSecretEnv, "emit-secret")

	cases := [][]string{
		{"emit", "--scope", "user", "--event", "x"},
		{"emit", "--event", "x", "--payload", "{not json"},
		{"emit", "--scope", "everyone", "--event", "x"},
	}
	for _, args := range cases {
		if err := run(context.Background(), args, &bytes.Buffer{}); err == nil {
			t.Errorf("run %v: expected error", args)
		}
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	if err := run(context.Background(), []string{"frobnicate"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown command")
	}
}
