// Command server runs the realtime server: authenticated websocket
// connections grouped into rooms, plus the Emit Gateway backend services
// call to broadcast events.
//
//	realtime-server --config config/server.yaml --env-file .env
//
// Routes on the HTTP port:
//
//	<path>    websocket endpoint (default /realtime)
//	/emit     POST, bearer-protected broadcast trigger
//	/stats    GET, bearer-protected room and client counts
//	/health   GET, liveness
//	/metrics  GET, Prometheus text exposition
//
// When grpc_port is set a grpc.health.v1 service is served on it.
package main
