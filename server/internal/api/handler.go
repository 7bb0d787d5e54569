package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/taskhub/realtime/pkg/emit"
	"github.com/taskhub/realtime/server/internal/auth"
	"github.com/taskhub/realtime/server/internal/metrics"
	"github.com/taskhub/realtime/server/internal/ws"
)

// DefaultMaxBodyBytes bounds an emit request body.
const DefaultMaxBodyBytes = 1 << 20

// Broadcaster delivers events to rooms of live connections.
type Broadcaster interface {
	Emit(event string, payload json.RawMessage, rooms ...string) int
	Stats() (rooms, clients int)
}

// Options configures the handler.
type Options struct {
	// EmitSecret is the shared bearer secret for /emit and /stats.
	EmitSecret string

	// MaxBodyBytes limits /emit bodies (default DefaultMaxBodyBytes).
	MaxBodyBytes int64

	Metrics *metrics.Registry
}

// Handler serves the gateway and probe routes.
type Handler struct {
	b       Broadcaster
	maxBody int64
	metrics *metrics.Registry
	mux     *http.ServeMux
}

// New creates a Handler that broadcasts through b and registers all routes.
func New(b Broadcaster, opts Options) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	h := &Handler{
		b:       b,
		maxBody: opts.MaxBodyBytes,
		metrics: opts.Metrics,
		mux:     http.NewServeMux(),
	}

	gate := auth.NewGate(opts.EmitSecret, func(r *http.Request) {
		if r.URL.Path == "/emit" {
			h.metrics.Rejected(metrics.ReasonUnauthorized)
		}
		slog.Warn("api: rejected unauthenticated request", "path", r.URL.Path, "remote", r.RemoteAddr)
	})

	h.mux.Handle("/emit", gate.Wrap(http.HandlerFunc(h.emit)))
	h.mux.Handle("/stats", gate.Wrap(http.HandlerFunc(h.stats)))
	h.mux.HandleFunc("/health", h.health)
	h.mux.Handle("/metrics", opts.Metrics.Handler())

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// emit handles POST /emit. Authentication has already passed.
func (h *Handler) emit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req emit.Request
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.metrics.Rejected(metrics.ReasonTooLarge)
			jsonErr(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		h.metrics.Rejected(metrics.ReasonInvalid)
		jsonErr(w, http.StatusBadRequest, decodeMessage(err))
		return
	}

	if err := req.Validate(); err != nil {
		h.metrics.Rejected(metrics.ReasonInvalid)
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	targets := req.Targets()
	rooms := roomsFor(req.Scope, targets)
	sockets := h.b.Emit(req.Event, req.PayloadOrNull(), rooms...)
	h.metrics.Emitted(string(req.Scope))

	slog.Debug("api: event emitted",
		"event", req.Event,
		"scope", req.Scope,
		"rooms", len(rooms),
		"sockets", sockets,
	)

	resp := emit.Response{OK: true}
	if req.Scope == emit.ScopeUsers {
		resp.Recipients = len(targets)
	}
	jsonResp(w, http.StatusOK, resp)
}

// health serves GET /health with a static liveness payload.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{OK: true})
}

// stats serves GET /stats with live room and connection counts.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rooms, clients := h.b.Stats()
	jsonResp(w, http.StatusOK, StatsResponse{OK: true, Rooms: rooms, Clients: clients})
}

// --- helpers ----------------------------------------------------------------

// roomsFor maps a validated scope and its targets to hub room names.
func roomsFor(scope emit.Scope, targets []string) []string {
	if scope == emit.ScopeWorkspace {
		return []string{ws.WorkspaceRoom}
	}
	rooms := make([]string, 0, len(targets))
	for _, id := range targets {
		rooms = append(rooms, ws.UserRoom(id))
	}
	return rooms
}

// decodeMessage turns a JSON decode error into a caller-facing message.
func decodeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return "request body must be a JSON object"
		}
		return fmt.Sprintf("field %s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
	}
	return "malformed JSON body"
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{OK: false, Error: msg})
}
