// Package ws implements the realtime socket hub.
//
// The Hub is the single owner of group membership. A group (room) exists
// only while it has members: it is created by the first join and removed by
// the last leave. No other structure is keyed by connection.
//
// Connection lifecycle, served at the configured mount path:
//
//  1. The origin is checked and the HTTP connection upgraded to WebSocket.
//  2. The client sends its realtime token as the first frame:
//     {"event":"auth","data":{"token":"<jwt>"}}
//     It must arrive within Options.HandshakeTimeout.
//  3. On failure the server sends
//     {"event":"connect_error","data":{"message":"Unauthorized"}}
//     and closes with code 4401. The connection never joins a room.
//  4. On success the connection joins "workspace" and "user:<id>" and
//     receives {"event":"ready","data":{"userId":"<id>","ts":<unix ms>}}.
//  5. From then on the socket is server-to-client. Every broadcast arrives
//     as {"event":"<name>","data":<payload>}.
//
// Closing a connection, for any reason, removes it from all rooms.
//
// Hub.Emit(event, payload, rooms...) delivers to the union of the named
// rooms, once per socket. Each socket has a bounded send queue drained by
// a single writer goroutine, so events reach a socket in emission order.
// A socket whose queue is full is disconnected.
package ws
