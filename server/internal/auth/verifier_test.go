package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taskhub/realtime/pkg/token"
)

const testSecret = "handshake-secret"

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newTestVerifier() *Verifier {
	v := NewVerifier(testSecret, token.DefaultAudience, token.DefaultIssuer, 0)
	v.now = func() time.Time { return testNow }
	return v
}

// sign builds a token from claims with the given method and key.
func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

// validClaims returns claims that pass every check; tests mutate one field.
func validClaims() token.Claims {
	return token.Claims{
		Realtime: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    token.DefaultIssuer,
			Subject:   "42",
			Audience:  jwt.ClaimStrings{token.DefaultAudience},
			IssuedAt:  jwt.NewNumericDate(testNow),
			ExpiresAt: jwt.NewNumericDate(testNow.Add(token.DefaultTTL)),
		},
	}
}

func TestVerify_ValidToken(t *testing.T) {
	v := newTestVerifier()
	raw := sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims())

	user, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if user != "42" {
		t.Errorf("user: got %q, want 42", user)
	}
}

func TestVerify_IssuerMintedToken(t *testing.T) {
	iss, err := token.NewIssuer(testSecret, token.WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	raw, _, err := iss.Mint("u-7")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	user, err := newTestVerifier().Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if user != "u-7" {
		t.Errorf("user: got %q, want u-7", user)
	}
}

func TestVerify_Rejections(t *testing.T) {
	tests := []struct {
		name string
		raw  func(t *testing.T) string
	}{
		{
			name: "missing token",
			raw:  func(*testing.T) string { return "" },
		},
		{
			name: "whitespace token",
			raw:  func(*testing.T) string { return "   " },
		},
		{
			name: "malformed token",
			raw:  func(*testing.T) string { return "not.a.jwt" },
		},
		{
			name: "wrong secret",
			raw: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS256, []byte("other-secret"), validClaims())
			},
		},
		{
			name: "unexpected algorithm",
			raw: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims())
			},
		},
		{
			name: "alg none",
			raw: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims())
			},
		},
		{
			name: "expired",
			raw: func(t *testing.T) string {
				c := validClaims()
				c.IssuedAt = jwt.NewNumericDate(testNow.Add(-5 * time.Minute))
				c.ExpiresAt = jwt.NewNumericDate(testNow.Add(-3 * time.Minute))
				return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
			},
		},
		{
			name: "missing exp",
			raw: func(t *testing.T) string {
				c := validClaims()
				c.ExpiresAt = nil
				return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
			},
		},
		{
			name: "main session audience",
			raw: func(t *testing.T) string {
				c := validClaims()
				c.Audience = jwt.ClaimStrings{"taskhub-web"}
				return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
			},
		},
		{
			name: "wrong issuer",
			raw: func(t *testing.T) string {
				c := validClaims()
				c.Issuer = "someone-else"
				return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
			},
		},
		{
			name: "not realtime-class",
			raw: func(t *testing.T) string {
				c := validClaims()
				c.Realtime = false
				return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
			},
		},
		{
			name: "empty subject",
			raw: func(t *testing.T) string {
				c := validClaims()
				c.Subject = ""
				return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
			},
		},
	}

	v := newTestVerifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := v.Verify(tt.raw(t))
			if err == nil {
				t.Fatalf("expected rejection, got user %q", user)
			}
			if !errors.Is(err, ErrUnauthorized) {
				t.Errorf("error %v does not wrap ErrUnauthorized", err)
			}
			if user != "" {
				t.Errorf("user: got %q, want empty", user)
			}
		})
	}
}

func TestVerify_LeewayAcceptsSlightlyExpired(t *testing.T) {
	v := NewVerifier(testSecret, token.DefaultAudience, token.DefaultIssuer, 5*time.Second)
	v.now = func() time.Time { return testNow }

	c := validClaims()
	c.ExpiresAt = jwt.NewNumericDate(testNow.Add(-2 * time.Second))
	raw := sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)

	if _, err := v.Verify(raw); err != nil {
		t.Fatalf("Verify within leeway: %v", err)
	}
}

func TestVerify_EmptyIssuerSkipsCheck(t *testing.T) {
	v := NewVerifier(testSecret, token.DefaultAudience, "", 0)
	v.now = func() time.Time { return testNow }

	c := validClaims()
	c.Issuer = "anything"
	raw := sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)

	if _, err := v.Verify(raw); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerify_NoSecretRejectsEverything(t *testing.T) {
	v := NewVerifier("", token.DefaultAudience, token.DefaultIssuer, 0)
	raw := sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims())
	if _, err := v.Verify(raw); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err: got %v, want ErrUnauthorized", err)
	}
}
