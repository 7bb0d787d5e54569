package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taskhub/realtime/pkg/token"
)

// ErrUnauthorized is the only error class the handshake surfaces to clients.
var ErrUnauthorized = errors.New("Unauthorized")

// Verifier validates realtime tokens. It is safe for concurrent use and
// performs no I/O, so verification latency is bounded by one HMAC.
type Verifier struct {
	secret   []byte
	audience string
	issuer   string
	leeway   time.Duration
	now      func() time.Time // injectable for deterministic tests
}

// NewVerifier returns a Verifier for tokens signed with secret. An empty
// issuer disables the iss check.
func NewVerifier(secret, audience, issuer string, leeway time.Duration) *Verifier {
	return &Verifier{
		secret:   []byte(secret),
		audience: audience,
		issuer:   issuer,
		leeway:   leeway,
		now:      time.Now,
	}
}

// Verify validates raw and returns the user identifier it names.
func (v *Verifier) Verify(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", reject("token missing", nil)
	}
	if len(v.secret) == 0 {
		return "", reject("verifier has no secret", nil)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{token.SigningMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(v.audience),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims token.Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", reject(parseReason(err), err)
	}
	if !claims.Realtime {
		return "", reject("token is not realtime-class", nil)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", reject("subject missing", nil)
	}
	return claims.Subject, nil
}

func reject(reason string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrUnauthorized, reason)
	}
	return fmt.Errorf("%w: %s: %w", ErrUnauthorized, reason, cause)
}

// parseReason names the failed step for server-side logs.
func parseReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed token"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return "bad signature"
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "expired or missing exp"
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "wrong audience"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "wrong issuer"
	default:
		return "invalid token"
	}
}
