package metrics

import (
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Rejection reasons for emit requests.
const (
	ReasonUnauthorized = "unauthorized"
	ReasonInvalid      = "invalid"
	ReasonTooLarge     = "too_large"
)

// Registry holds the server's counters.
type Registry struct {
	connections       atomic.Uint64
	handshakeFailures atomic.Uint64
	deliveries        atomic.Uint64
	slowConsumers     atomic.Uint64

	mu         sync.Mutex
	emits      map[string]uint64 // by scope
	rejections map[string]uint64 // by reason
	active     func() int
}

// New returns a Registry with every known scope and reason at zero.
func New() *Registry {
	r := &Registry{
		emits:      make(map[string]uint64),
		rejections: make(map[string]uint64),
	}
	for _, s := range []string{"workspace", "user", "users"} {
		r.emits[s] = 0
	}
	for _, reason := range []string{ReasonUnauthorized, ReasonInvalid, ReasonTooLarge} {
		r.rejections[reason] = 0
	}
	return r
}

// SetActiveFunc registers the source of the active-connections gauge.
func (r *Registry) SetActiveFunc(f func() int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.active = f
	r.mu.Unlock()
}

// ConnectionOpened counts an authenticated connection.
func (r *Registry) ConnectionOpened() {
	if r == nil {
		return
	}
	r.connections.Add(1)
}

// HandshakeFailed counts a rejected handshake.
func (r *Registry) HandshakeFailed() {
	if r == nil {
		return
	}
	r.handshakeFailures.Add(1)
}

// SlowConsumer counts a socket dropped because its send queue was full.
func (r *Registry) SlowConsumer() {
	if r == nil {
		return
	}
	r.slowConsumers.Add(1)
}

// Delivered counts n socket deliveries.
func (r *Registry) Delivered(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.deliveries.Add(uint64(n))
}

// Emitted counts one accepted emit request for scope.
func (r *Registry) Emitted(scope string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.emits[scope]++
	r.mu.Unlock()
}

// Rejected counts one refused emit request.
func (r *Registry) Rejected(reason string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.rejections[reason]++
	r.mu.Unlock()
}

// Gather returns the current values as metric families sorted by name.
func (r *Registry) Gather() []*dto.MetricFamily {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	emits := copyMap(r.emits)
	rejections := copyMap(r.rejections)
	active := r.active
	r.mu.Unlock()

	activeN := 0
	if active != nil {
		activeN = active()
	}

	mfs := []*dto.MetricFamily{
		counter("realtime_connections_total",
			"Authenticated socket connections accepted.", float64(r.connections.Load())),
		gauge("realtime_connections_active",
			"Sockets currently connected and authenticated.", float64(activeN)),
		counter("realtime_handshake_failures_total",
			"Socket handshakes rejected as unauthorized.", float64(r.handshakeFailures.Load())),
		counter("realtime_deliveries_total",
			"Events enqueued to individual sockets.", float64(r.deliveries.Load())),
		counter("realtime_slow_consumer_disconnects_total",
			"Sockets disconnected because their send queue was full.", float64(r.slowConsumers.Load())),
		labelledCounter("realtime_emits_total",
			"Emit requests accepted, by scope.", "scope", emits),
		labelledCounter("realtime_emit_rejections_total",
			"Emit requests refused, by reason.", "reason", rejections),
	}
	sort.Slice(mfs, func(i, j int) bool { return mfs[i].GetName() < mfs[j].GetName() })
	return mfs
}

// Write encodes the current values to w in the Prometheus text format.
func (r *Registry) Write(w io.Writer) error {
	enc := expfmt.NewEncoder(w, textFormat)
	for _, mf := range r.Gather() {
		if len(mf.GetMetric()) == 0 {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the registry at GET /metrics.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", string(textFormat))
		r.Write(w) //nolint:errcheck
	})
}

// --- helpers ----------------------------------------------------------------

var textFormat = expfmt.NewFormat(expfmt.TypeTextPlain)

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   strPtr(name),
		Help:   strPtr(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: &v}}},
	}
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   strPtr(name),
		Help:   strPtr(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: &v}}},
	}
}

// labelledCounter renders one counter series per map key, sorted by label.
func labelledCounter(name, help, label string, values map[string]uint64) *dto.MetricFamily {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	metrics := make([]*dto.Metric, 0, len(keys))
	for _, k := range keys {
		v := float64(values[k])
		metrics = append(metrics, &dto.Metric{
			Label:   []*dto.LabelPair{{Name: strPtr(label), Value: strPtr(k)}},
			Counter: &dto.Counter{Value: &v},
		})
	}
	return &dto.MetricFamily{
		Name:   strPtr(name),
		Help:   strPtr(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: metrics,
	}
}

func copyMap(m map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func strPtr(s string) *string { return &s }
