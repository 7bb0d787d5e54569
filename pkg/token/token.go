package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Contract constants. Both sides must agree on these values.
const (
	DefaultAudience = "realtime"
	DefaultIssuer   = "taskhub-api"
	DefaultTTL      = 2 * time.Minute

	// RealtimeClaim is the JSON name of the realtime-class marker.
	RealtimeClaim = "rt"
)

// SigningMethod is the only algorithm realtime tokens are signed with.
var SigningMethod = jwt.SigningMethodHS256

// Claims is the claim set carried by a realtime token.
type Claims struct {
	Realtime bool `json:"rt"`
	jwt.RegisteredClaims
}

// Issuer mints realtime tokens for authenticated users.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time // injectable for deterministic tests
}

// Option customises an Issuer.
type Option func(*Issuer)

// WithIssuer overrides the iss claim (default DefaultIssuer).
func WithIssuer(iss string) Option {
	return func(i *Issuer) { i.issuer = iss }
}

// WithAudience overrides the aud claim (default DefaultAudience).
func WithAudience(aud string) Option {
	return func(i *Issuer) { i.audience = aud }
}

// WithTTL overrides the token lifetime (default DefaultTTL).
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) { i.ttl = ttl }
}

// WithClock sets the time source used for iat/exp.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer returns an Issuer that signs with secret.
func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("token: signing secret is empty")
	}
	i := &Issuer{
		secret:   []byte(secret),
		issuer:   DefaultIssuer,
		audience: DefaultAudience,
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, o := range opts {
		o(i)
	}
	if i.ttl <= 0 {
		return nil, fmt.Errorf("token: ttl %v must be positive", i.ttl)
	}
	return i, nil
}

// Mint returns a signed realtime token for userID and its expiry time.
func (i *Issuer) Mint(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("token: user id is empty")
	}
	now := i.now().UTC().Truncate(time.Second)
	exp := now.Add(i.ttl)

	claims := Claims{
		Realtime: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(SigningMethod, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, exp, nil
}
