package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Event names used by the handshake.
const (
	EventAuth         = "auth"
	EventReady        = "ready"
	EventConnectError = "connect_error"
)

// CloseUnauthorized is the close code sent after a rejected handshake.
const CloseUnauthorized = 4401

// unauthorizedReason is the only failure detail a client ever sees.
const unauthorizedReason = "Unauthorized"

// handshakeReadLimit bounds the auth frame.
const handshakeReadLimit = 8192

// AuthData is the payload of the client's auth frame.
type AuthData struct {
	Token string `json:"token"`
}

// ReadyData is the payload of the ready acknowledgment.
type ReadyData struct {
	UserID string `json:"userId"`
	TS     int64  `json:"ts"` // server time, unix milliseconds
}

// ConnectErrorData is the payload sent before closing a refused handshake.
type ConnectErrorData struct {
	Message string `json:"message"`
}

// handshake reads the auth frame within the handshake timeout and returns
// the authenticated user id.
func (h *Hub) handshake(conn *websocket.Conn) (string, error) {
	conn.SetReadLimit(handshakeReadLimit)
	conn.SetReadDeadline(time.Now().Add(h.opts.HandshakeTimeout)) //nolint:errcheck

	mt, data, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read auth frame: %w", err)
	}
	if mt != websocket.TextMessage {
		return "", errors.New("auth frame is not a text message")
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("decode auth frame: %w", err)
	}
	if msg.Event != EventAuth {
		return "", fmt.Errorf("first frame is %q, want %q", msg.Event, EventAuth)
	}
	var ad AuthData
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &ad); err != nil {
			return "", fmt.Errorf("decode auth data: %w", err)
		}
	}
	return h.auth.Verify(ad.Token)
}

// subscribe enrolls c in the workspace room and its user room, then queues
// the ready acknowledgment ahead of any broadcast.
func (h *Hub) subscribe(c *client) bool {
	ready, _ := json.Marshal(Message{
		Event: EventReady,
		Data:  mustJSON(ReadyData{UserID: c.userID, TS: time.Now().UnixMilli()}),
	})
	// The queue is empty and unshared until join returns.
	c.send <- ready
	return h.join(c, WorkspaceRoom, UserRoom(c.userID))
}

// refuse tells the client its handshake failed and closes the connection.
func refuse(conn *websocket.Conn) {
	defer conn.Close()

	msg, _ := json.Marshal(Message{
		Event: EventConnectError,
		Data:  mustJSON(ConnectErrorData{Message: unauthorizedReason}),
	})
	deadline := time.Now().Add(writeTimeout)
	conn.SetWriteDeadline(deadline) //nolint:errcheck
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return
	}
	conn.WriteControl(websocket.CloseMessage, //nolint:errcheck
		websocket.FormatCloseMessage(CloseUnauthorized, unauthorizedReason), deadline)
}

func mustJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("ws: marshal %T: %v", v, err))
	}
	return b
}
