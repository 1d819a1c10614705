package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Event("enforced")
	m.Event("enforced")
	m.Violation("forwarding", "enforce")
	m.JobRun("autodelete", "ok", 20*time.Millisecond)
	m.HTTPRequest("GET", "/v1/chats/{chatID}/rules", 200, time.Millisecond)

	if got := testutil.ToFloat64(m.events.WithLabelValues("enforced")); got != 2 {
		t.Fatalf("unexpected events counter: %v", got)
	}
	if got := testutil.ToFloat64(m.violations.WithLabelValues("forwarding", "enforce")); got != 1 {
		t.Fatalf("unexpected violations counter: %v", got)
	}
	if got := testutil.ToFloat64(m.jobRuns.WithLabelValues("autodelete", "ok")); got != 1 {
		t.Fatalf("unexpected job runs counter: %v", got)
	}
	if got := testutil.ToFloat64(m.httpReqs.WithLabelValues("GET", "/v1/chats/{chatID}/rules", "200")); got != 1 {
		t.Fatalf("unexpected http counter: %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Event("ignored")
	m.Action("ban", "applied")
	m.PlatformError("transient")
	m.Deletion("deleted")
	m.Reconciled("punishment", "lifted")
	m.JobRun("reconcile", "skipped", 0)
	m.HTTPRequest("GET", "/healthz", 200, 0)
}
