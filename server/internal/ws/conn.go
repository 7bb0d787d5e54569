package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// readLimit bounds inbound frames after the handshake. Clients have
	// nothing to say beyond control frames.
	readLimit = 4096
)

type enqueueResult int

const (
	enqueued enqueueResult = iota
	queueFull
	clientClosed
)

// client is one authenticated socket. rooms is written once by join and
// read by leave, both under the hub lock.
type client struct {
	id     string
	userID string
	rooms  []string

	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id, userID string, conn *websocket.Conn, buf int) *client {
	return &client{
		id:     id,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, buf),
		done:   make(chan struct{}),
	}
}

// enqueue queues msg without blocking. send is never closed, so concurrent
// emitters cannot race with teardown.
func (c *client) enqueue(msg []byte) enqueueResult {
	select {
	case <-c.done:
		return clientClosed
	default:
	}
	select {
	case c.send <- msg:
		return enqueued
	default:
		return queueFull
	}
}

// close signals the write pump to send a close frame and drop the socket.
func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writePump drains the send queue to the connection and sends periodic
// pings. It is the only writer of data frames.
func (c *client) writePump(pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			c.conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}

// readPump reads frames to process control messages (pong, close) and
// detect disconnects. Blocks until the connection closes.
func (c *client) readPump(pongWait time.Duration) {
	defer c.conn.Close()
	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	}
}
