// Package token defines the realtime token contract shared by the API layer
// (which mints tokens) and the realtime server (which verifies them).
//
// A realtime token is an HS256-signed JWT carrying:
//
//	sub   user identifier (required)
//	aud   the reserved realtime audience, distinct from the main session audience
//	iss   the API issuer string
//	iat   issued-at
//	exp   expiry, DefaultTTL (2 minutes) after iat
//	rt    true; marks the token as realtime-class
//
// Tokens are never stored and never revoked individually. The short TTL is
// the only mitigation for a leaked token.
package token
