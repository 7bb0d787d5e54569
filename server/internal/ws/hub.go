package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/taskhub/realtime/server/internal/metrics"
)

// WorkspaceRoom is the group every authenticated connection joins.
const WorkspaceRoom = "workspace"

// UserRoom returns the name of the group holding all connections of userID.
func UserRoom(userID string) string {
	return "user:" + userID
}

// Default values for Options.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultSendBuffer       = 64
	DefaultPongWait         = 60 * time.Second
	DefaultPingPeriod       = (DefaultPongWait * 9) / 10
)

// Authenticator validates a handshake token and returns the user id it names.
type Authenticator interface {
	Verify(token string) (string, error)
}

// Options tunes the hub. Zero values select the defaults above.
type Options struct {
	HandshakeTimeout time.Duration
	SendBuffer       int
	PingPeriod       time.Duration
	PongWait         time.Duration

	// CheckOrigin is passed to the websocket upgrader. Nil rejects any
	// request whose Origin does not match its Host.
	CheckOrigin func(*http.Request) bool

	Metrics *metrics.Registry
}

// Message is the JSON envelope of every frame exchanged with clients.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Hub manages authenticated socket connections and their rooms.
type Hub struct {
	auth     Authenticator
	opts     Options
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	rooms  map[string]map[*client]struct{}
	closed bool
}

// New creates a Hub that authenticates handshakes with a.
func New(a Authenticator, opts Options) *Hub {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	if opts.PongWait <= 0 {
		opts.PongWait = DefaultPongWait
	}
	if opts.PingPeriod <= 0 || opts.PingPeriod >= opts.PongWait {
		opts.PingPeriod = (opts.PongWait * 9) / 10
	}

	h := &Hub{
		auth: a,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
		rooms: make(map[string]map[*client]struct{}),
	}
	opts.Metrics.SetActiveFunc(h.Count)
	return h
}

// Run blocks until ctx is cancelled, then closes every connection and
// refuses new ones.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// ServeHTTP upgrades the connection, authenticates it and serves it until
// it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		slog.Debug("ws: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	id := uuid.NewString()
	userID, err := h.handshake(conn)
	if err != nil {
		h.opts.Metrics.HandshakeFailed()
		slog.Warn("ws: handshake rejected", "conn_id", id, "remote", r.RemoteAddr, "err", err)
		refuse(conn)
		return
	}

	c := newClient(id, userID, conn, h.opts.SendBuffer)
	if !h.subscribe(c) {
		// Hub is shutting down.
		conn.Close()
		return
	}
	h.opts.Metrics.ConnectionOpened()
	slog.Info("ws: client connected", "conn_id", id, "user_id", userID, "remote", r.RemoteAddr)

	go c.writePump(h.opts.PingPeriod)
	c.readPump(h.opts.PongWait) // blocks until connection closes

	h.leave(c)
	c.close()
	slog.Info("ws: client disconnected", "conn_id", id, "user_id", userID)
}

// Emit sends event with payload to every socket in the union of rooms,
// exactly once per socket, and returns how many sockets it was queued for.
// Rooms without members are skipped silently.
func (h *Hub) Emit(event string, payload json.RawMessage, rooms ...string) int {
	msg, err := json.Marshal(Message{Event: event, Data: payload})
	if err != nil {
		slog.Error("ws: encode event", "event", event, "err", err)
		return 0
	}

	var slow []*client
	delivered := 0

	h.mu.RLock()
	seen := make(map[*client]struct{})
	for _, room := range rooms {
		for c := range h.rooms[room] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			switch c.enqueue(msg) {
			case enqueued:
				delivered++
			case queueFull:
				slow = append(slow, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.opts.Metrics.SlowConsumer()
		slog.Warn("ws: send queue full, disconnecting", "conn_id", c.id, "user_id", c.userID)
		c.close()
	}
	h.opts.Metrics.Delivered(delivered)
	return delivered
}

// Count returns the number of authenticated connections.
func (h *Hub) Count() int {
	return h.RoomSize(WorkspaceRoom)
}

// RoomSize returns the number of connections in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Stats returns the number of live rooms and authenticated connections.
func (h *Hub) Stats() (rooms, clients int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms), len(h.rooms[WorkspaceRoom])
}

// --- internal ---------------------------------------------------------------

// join adds c to rooms and records them on c. It reports false once the
// hub is closed.
func (h *Hub) join(c *client, rooms ...string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	for _, room := range rooms {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*client]struct{})
			h.rooms[room] = members
		}
		members[c] = struct{}{}
		c.rooms = append(c.rooms, room)
	}
	return true
}

// leave removes c from every room it joined, deleting rooms left empty.
// Calling leave more than once is harmless.
func (h *Hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range c.rooms {
		members := h.rooms[room]
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	all := make(map[*client]struct{})
	for _, members := range h.rooms {
		for c := range members {
			all[c] = struct{}{}
		}
	}
	h.rooms = make(map[string]map[*client]struct{})
	h.closed = true
	h.mu.Unlock()

	for c := range all {
		c.close()
	}
	if len(all) > 0 {
		slog.Info("ws: closed all connections", "count", len(all))
	}
}
