// Package auth provides the two authentication gates of the realtime server.
//
// Verifier checks a realtime token presented during the socket handshake.
// Verify(raw) runs, in order: presence, HS256 signature, expiry, audience,
// the "rt" realtime-class marker and a non-empty subject. Every failure
// wraps ErrUnauthorized; the detailed cause is for server logs only and is
// never sent to the client.
//
// Gate protects the internal emit endpoint with a static shared secret sent
// as "Authorization: Bearer <secret>". A missing or wrong secret returns 401
// before the request body is read. An empty configured secret rejects every
// request.
package auth
