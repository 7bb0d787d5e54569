// Package metrics keeps the realtime server's counters and renders them in
// the Prometheus text exposition format (GET /metrics).
//
// All Registry methods are safe for concurrent use and safe to call on a
// nil *Registry, which lets tests and tools skip metrics entirely.
package metrics
