package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusMetricsService(t *testing.T) {
	srv := newPrometheusMetricsServiceWith(prometheus.NewRegistry())

	srv.IncMessagesEnqueuedTotalBy(3, "bulk")
	srv.IncMessagesEnqueuedTotalBy(1, "manual")
	srv.IncDecisionsTotal("approve")
	srv.IncFailuresTotal(RetriesExhaustedReason)
	srv.IncRetriesTotal()
	srv.IncRetriesTotal()
	srv.SetQueueDepth(7)

	if v := testutil.ToFloat64(srv.messagesEnqueuedTotal.WithLabelValues("bulk")); v != 3 {
		t.Fatalf("expected 3 bulk enqueues, got %v", v)
	}
	if v := testutil.ToFloat64(srv.decisionsTotal.WithLabelValues("approve")); v != 1 {
		t.Fatalf("expected 1 approve decision, got %v", v)
	}
	if v := testutil.ToFloat64(srv.failuresTotal.WithLabelValues(RetriesExhaustedReason)); v != 1 {
		t.Fatalf("expected 1 exhausted failure, got %v", v)
	}
	if v := testutil.ToFloat64(srv.retriesTotal); v != 2 {
		t.Fatalf("expected 2 retries, got %v", v)
	}
	if v := testutil.ToFloat64(srv.queueDepth); v != 7 {
		t.Fatalf("expected queue depth 7, got %v", v)
	}
}

func TestNewMetricsServiceDisabled(t *testing.T) {
	if _, ok := NewMetricsService(false).(*NoopMetricsService); !ok {
		t.Fatalf("expected the no-op metrics service when metrics are disabled")
	}
}
