// Package emit defines the Emit Gateway wire contract and a small client
// backend processes use to trigger broadcasts.
//
//	POST /emit
//	Authorization: Bearer <shared-secret>
//	{"scope":"workspace","event":"task:created","payload":{...}}
//	{"scope":"user","userId":"42","event":"notification:new","payload":{...}}
//	{"scope":"users","userIds":["a","b"],"event":"x","payload":{...}}
//
// Responses are {"ok":true} or, for scope "users", {"ok":true,"recipients":n}
// where n counts distinct addressed user ids, not live sockets reached.
//
// Delivery is fire-and-forget. The client performs exactly one request and
// never retries; the realtime channel is an optimisation over the REST API,
// not the source of truth.
package emit
