// Package probe exposes the standard gRPC health-checking service
// (grpc.health.v1.Health) so orchestrators can probe the realtime server
// without speaking websocket or HTTP.
//
// The overall service ("") and the "realtime" service report SERVING while
// the process runs and flip to NOT_SERVING when shutdown begins, so load
// balancers stop routing new sockets before the hub drains.
package probe
