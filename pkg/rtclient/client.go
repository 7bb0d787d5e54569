package rtclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 30 * time.Second
	backoffMultiplier = 2.0
	readyTimeout      = 10 * time.Second
	writeTimeout      = 10 * time.Second
)

// Wire event names.
const (
	eventAuth         = "auth"
	eventReady        = "ready"
	eventConnectError = "connect_error"
)

// ErrUnauthorized is returned by a session the server refused with connect_error.
var ErrUnauthorized = errors.New("rtclient: unauthorized")

// TokenSource supplies a fresh realtime token for each connection attempt.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

// Token calls f(ctx).
func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Event is one server-sent frame.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client keeps one realtime connection alive.
type Client struct {
	// URL is the socket endpoint, e.g. ws://localhost:4001/realtime.
	URL string

	// Tokens is asked for a new token before every dial.
	Tokens TokenSource

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Header is sent with the upgrade request (Origin for browsers-like peers).
	Header http.Header

	// OnReady is called with the authenticated user id after each handshake.
	OnReady func(userID string)

	// OnEvent receives every event after ready. It runs on the read loop.
	OnEvent func(Event)

	// BackoffInitial and BackoffMax bound the reconnect delay.
	// Zero values use 1s and 30s.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Run connects and reconnects until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	bo := c.newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		ready, err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if ready {
			bo.reset()
		}

		wait := bo.next()
		if errors.Is(err, ErrUnauthorized) {
			slog.Warn("rtclient: unauthorized, refreshing token",
				"url", c.URL, "retry_in", wait)
		} else {
			slog.Warn("rtclient: connection lost, will reconnect",
				"url", c.URL, "err", err, "retry_in", wait)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// session runs one connection. ready reports whether the handshake succeeded.
func (c *Client) session(ctx context.Context) (ready bool, err error) {
	if c.Tokens == nil {
		return false, errors.New("rtclient: no token source")
	}
	tok, err := c.Tokens.Token(ctx)
	if err != nil {
		return false, fmt.Errorf("fetch token: %w", err)
	}

	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, c.URL, c.Header)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when ctx ends.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	if err := c.sendAuth(conn, tok); err != nil {
		return false, err
	}

	conn.SetReadDeadline(time.Now().Add(readyTimeout)) //nolint:errcheck
	first, err := readEvent(conn)
	if err != nil {
		return false, fmt.Errorf("await ready: %w", err)
	}
	switch first.Name {
	case eventReady:
	case eventConnectError:
		return false, ErrUnauthorized
	default:
		return false, fmt.Errorf("unexpected first event %q", first.Name)
	}
	conn.SetReadDeadline(time.Time{}) //nolint:errcheck

	if c.OnReady != nil {
		var rd struct {
			UserID string `json:"userId"`
		}
		json.Unmarshal(first.Data, &rd) //nolint:errcheck
		c.OnReady(rd.UserID)
	}
	slog.Debug("rtclient: ready", "url", c.URL)

	for {
		ev, err := readEvent(conn)
		if err != nil {
			return true, err
		}
		if c.OnEvent != nil {
			c.OnEvent(ev)
		}
	}
}

func (c *Client) sendAuth(conn *websocket.Conn, tok string) error {
	data, err := json.Marshal(struct {
		Token string `json:"token"`
	}{tok})
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Event{Name: eventAuth, Data: data})
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}
	return nil
}

func readEvent(conn *websocket.Conn) (Event, error) {
	var ev Event
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return ev, err
	}
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ev, fmt.Errorf("decode frame: %w", err)
	}
	return ev, nil
}

// --- helpers ---

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func (c *Client) newBackoff() *backoff {
	b := &backoff{initial: c.BackoffInitial, max: c.BackoffMax}
	if b.initial <= 0 {
		b.initial = backoffInitial
	}
	if b.max <= 0 {
		b.max = backoffMax
	}
	if b.max < b.initial {
		b.max = b.initial
	}
	b.current = b.initial
	return b
}

// next returns the current delay with ±25% jitter and advances the state.
func (b *backoff) next() time.Duration {
	d := b.current
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

func (b *backoff) reset() {
	b.current = b.initial
}
