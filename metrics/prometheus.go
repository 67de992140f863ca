package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type PrometheusMetricsService struct {
	messagesEnqueuedTotal  *prometheus.CounterVec
	enqueueRejectedTotal   *prometheus.CounterVec
	messagesClearedTotal   prometheus.Counter
	decisionsTotal         *prometheus.CounterVec
	failuresTotal          *prometheus.CounterVec
	retriesTotal           prometheus.Counter
	classificationDuration prometheus.Histogram
	queueDepth             prometheus.Gauge
	inFlight               prometheus.Gauge
	activeWorkers          prometheus.Gauge
}

func newPrometheusMetricsService() *PrometheusMetricsService {
	return newPrometheusMetricsServiceWith(prometheus.DefaultRegisterer)
}

func newPrometheusMetricsServiceWith(registerer prometheus.Registerer) *PrometheusMetricsService {
	srv := &PrometheusMetricsService{
		// source is one of manual, bulk, sweep or retry
		messagesEnqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "approvals_messages_enqueued_total",
				Help: "Total number of approval messages accepted by the queue",
			},
			[]string{"source"},
		),

		enqueueRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "approvals_enqueue_rejected_total",
				Help: "Total number of enqueue attempts refused by the queue, e.g. when it is full or the listing is already queued",
			},
			[]string{"reason"},
		),

		messagesClearedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "approvals_messages_cleared_total",
				Help: "Total number of queued messages discarded by an admin without processing",
			},
		),

		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "approvals_decisions_total",
				Help: "Total number of listings approved or rejected by the pipeline",
			},
			[]string{"verdict"},
		),

		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "approvals_failures_total",
				Help: "Total number of processing failures by reason",
			},
			[]string{"reason"},
		),

		retriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "approvals_retries_total",
				Help: "Total number of messages resubmitted after a failed classification",
			},
		),

		classificationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "approvals_classification_duration_seconds",
				Help:    "Duration of calls to the classification service, failed ones included",
				Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
			},
		),

		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "approvals_queue_depth",
				Help: "Current number of messages waiting in the approval queue",
			},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "approvals_in_flight",
				Help: "Current number of messages taken by workers and not finished yet",
			},
		),

		activeWorkers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "approvals_active_workers",
				Help: "Current number of running workers, burst workers included",
			},
		),
	}

	registerer.MustRegister(
		srv.messagesEnqueuedTotal,
		srv.enqueueRejectedTotal,
		srv.messagesClearedTotal,
		srv.decisionsTotal,
		srv.failuresTotal,
		srv.retriesTotal,
		srv.classificationDuration,
		srv.queueDepth,
		srv.inFlight,
		srv.activeWorkers,
	)

	return srv
}

func (pms *PrometheusMetricsService) IncMessagesEnqueuedTotalBy(count int64, source string) {
	pms.messagesEnqueuedTotal.WithLabelValues(source).Add(float64(count))
}

func (pms *PrometheusMetricsService) IncEnqueueRejectedTotal(reason string) {
	pms.enqueueRejectedTotal.WithLabelValues(reason).Inc()
}

func (pms *PrometheusMetricsService) IncMessagesClearedTotalBy(count int64) {
	pms.messagesClearedTotal.Add(float64(count))
}

func (pms *PrometheusMetricsService) IncDecisionsTotal(verdict string) {
	pms.decisionsTotal.WithLabelValues(verdict).Inc()
}

func (pms *PrometheusMetricsService) IncFailuresTotal(reason string) {
	pms.failuresTotal.WithLabelValues(reason).Inc()
}

func (pms *PrometheusMetricsService) IncRetriesTotal() {
	pms.retriesTotal.Inc()
}

func (pms *PrometheusMetricsService) ObserveClassificationDuration(seconds float64) {
	pms.classificationDuration.Observe(seconds)
}

func (pms *PrometheusMetricsService) SetQueueDepth(depth int64) {
	pms.queueDepth.Set(float64(depth))
}

func (pms *PrometheusMetricsService) SetInFlight(count int64) {
	pms.inFlight.Set(float64(count))
}

func (pms *PrometheusMetricsService) SetActiveWorkers(count int64) {
	pms.activeWorkers.Set(float64(count))
}
