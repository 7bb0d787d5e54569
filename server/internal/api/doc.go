// Package api implements the HTTP surface of the realtime server.
//
// New(broadcaster, opts) returns an http.Handler that serves:
//
//	POST /emit      Emit Gateway; bearer secret required
//	GET  /health    liveness probe, {"ok":true}, no auth
//	GET  /stats     live room and connection counts; bearer secret required
//	GET  /metrics   Prometheus text exposition
//
// /emit authenticates before reading the body, decodes an emit.Request,
// validates it and only then performs a single broadcast. A malformed
// request never causes a partial delivery. Responses are JSON:
//
//	200 {"ok":true}                   workspace and user scopes
//	200 {"ok":true,"recipients":n}    users scope; n = distinct ids addressed
//	400 {"ok":false,"error":"..."}    validation failure (descriptive)
//	401 {"ok":false,"error":"unauthorized"}
//	413 {"ok":false,"error":"..."}    body larger than MaxBodyBytes
//
// No external HTTP framework is used.
package api
