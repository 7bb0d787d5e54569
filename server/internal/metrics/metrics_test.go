package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// parse decodes the text exposition written by the registry.
func parse(t *testing.T, body string) map[string]*dto.MetricFamily {
	t.Helper()
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse exposition: %v\n%s", err, body)
	}
	return mfs
}

func labelValue(mf *dto.MetricFamily, label, value string) float64 {
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	return -1
}

func TestRegistry_Write(t *testing.T) {
	r := New()
	r.ConnectionOpened()
	r.ConnectionOpened()
	r.HandshakeFailed()
	r.Emitted("users")
	r.Emitted("users")
	r.Emitted("workspace")
	r.Rejected(ReasonUnauthorized)
	r.Delivered(3)
	r.Delivered(0)
	r.SlowConsumer()
	r.SetActiveFunc(func() int { return 7 })

	var buf bytes.Buffer
	if err := r.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	mfs := parse(t, buf.String())

	checks := map[string]float64{
		"realtime_connections_total":               2,
		"realtime_handshake_failures_total":        1,
		"realtime_deliveries_total":                3,
		"realtime_slow_consumer_disconnects_total": 1,
	}
	for name, want := range checks {
		mf, ok := mfs[name]
		if !ok {
			t.Errorf("%s: missing", name)
			continue
		}
		if got := mf.GetMetric()[0].GetCounter().GetValue(); got != want {
			t.Errorf("%s: got %v, want %v", name, got, want)
		}
	}

	if got := mfs["realtime_connections_active"].GetMetric()[0].GetGauge().GetValue(); got != 7 {
		t.Errorf("realtime_connections_active: got %v, want 7", got)
	}
	emits := mfs["realtime_emits_total"]
	if got := labelValue(emits, "scope", "users"); got != 2 {
		t.Errorf("emits{scope=users}: got %v, want 2", got)
	}
	if got := labelValue(emits, "scope", "user"); got != 0 {
		t.Errorf("emits{scope=user}: got %v, want 0", got)
	}
	rej := mfs["realtime_emit_rejections_total"]
	if got := labelValue(rej, "reason", ReasonUnauthorized); got != 1 {
		t.Errorf("rejections{reason=unauthorized}: got %v, want 1", got)
	}
}

func TestRegistry_NilSafe(t *testing.T) {
	var r *Registry
	r.ConnectionOpened()
	r.HandshakeFailed()
	r.Emitted("user")
	r.Rejected(ReasonInvalid)
	r.Delivered(1)
	r.SlowConsumer()
	r.SetActiveFunc(func() int { return 1 })
	if mfs := r.Gather(); mfs != nil {
		t.Errorf("Gather on nil: got %d families, want nil", len(mfs))
	}
}

func TestHandler(t *testing.T) {
	r := New()
	rr := httptest.NewRecorder()
	r.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type: got %q, want text/plain", ct)
	}
	if !strings.Contains(rr.Body.String(), "realtime_connections_active 0") {
		t.Errorf("body missing active gauge:\n%s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	r.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status: got %d, want 405", rr.Code)
	}
}
