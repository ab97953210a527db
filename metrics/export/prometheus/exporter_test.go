package prometheus

import (
	"net/http/httptest"
	"strings"
	"testing"

	goLedger "github.com/finbolt/goLedger"
)

type fakeSource struct {
	snapshot goLedger.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goLedger.MetricsSnapshot { return f.snapshot }
func (f *fakeSource) AuditDropped() uint64                      { return f.dropped }

func testSource() *fakeSource {
	return &fakeSource{
		snapshot: goLedger.MetricsSnapshot{
			Counters: map[goLedger.MetricID]uint64{
				goLedger.MetricSubmitSuccess:   7,
				goLedger.MetricVersionConflict: 3,
			},
			Histograms: map[goLedger.MetricID][]uint64{
				goLedger.MetricSubmitLatency: {4, 2, 0, 1, 0, 0, 0, 0},
			},
		},
		dropped: 2,
	}
}

func TestRenderCounters(t *testing.T) {
	exporter := NewPrometheusExporterFromSource(testSource())
	out := exporter.Render()

	for _, want := range []string{
		"# TYPE goledger_submit_success_total counter",
		"goledger_submit_success_total 7",
		"goledger_version_conflict_total 3",
		"goledger_submit_throttled_total 0",
		"goledger_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
}

func TestRenderHistogramIsCumulative(t *testing.T) {
	exporter := NewPrometheusExporterFromSource(testSource())
	out := exporter.Render()

	for _, want := range []string{
		"# TYPE goledger_submit_latency_seconds histogram",
		`goledger_submit_latency_seconds_bucket{le="0.005"} 4`,
		`goledger_submit_latency_seconds_bucket{le="0.01"} 6`,
		`goledger_submit_latency_seconds_bucket{le="0.025"} 6`,
		`goledger_submit_latency_seconds_bucket{le="0.05"} 7`,
		`goledger_submit_latency_seconds_bucket{le="+Inf"} 7`,
		"goledger_submit_latency_seconds_count 7",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
}

func TestRenderEmptySource(t *testing.T) {
	exporter := NewPrometheusExporterFromSource(&fakeSource{
		snapshot: goLedger.MetricsSnapshot{
			Counters:   map[goLedger.MetricID]uint64{},
			Histograms: map[goLedger.MetricID][]uint64{},
		},
	})
	if out := exporter.Render(); out != "" {
		t.Fatalf("expected empty render, got:\n%s", out)
	}

	var nilExporter *PrometheusExporter
	if nilExporter.Render() != "" {
		t.Fatal("nil exporter must render nothing")
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	exporter := NewPrometheusExporterFromSource(testSource())

	rec := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "goledger_submit_success_total 7") {
		t.Fatalf("handler body missing counters:\n%s", rec.Body.String())
	}
}
