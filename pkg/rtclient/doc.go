// Package rtclient is a Go client for the realtime server.
//
// A Client fetches a short-lived token from its TokenSource, opens the
// socket, sends the auth frame and waits for "ready". Events after that are
// handed to OnEvent in the order the server sent them.
//
// Tokens expire quickly, so every reconnect fetches a fresh one. After a
// connect_error or a dropped socket the client waits with truncated
// exponential backoff plus jitter (1s up to 30s by default) and tries
// again. The backoff resets once a connection reaches "ready".
package rtclient
