package metrics

const (
	ClassificationFailedReason = "classification_failed"
	RetryDroppedReason         = "retry_dropped"
	RetriesExhaustedReason     = "retries_exhausted"
	SupersededReason           = "superseded"
)

type Service interface {
	IncMessagesEnqueuedTotalBy(count int64, source string)
	IncEnqueueRejectedTotal(reason string)
	IncMessagesClearedTotalBy(count int64)
	IncDecisionsTotal(verdict string)
	IncFailuresTotal(reason string)
	IncRetriesTotal()
	ObserveClassificationDuration(seconds float64)
	SetQueueDepth(depth int64)
	SetInFlight(count int64)
	SetActiveWorkers(count int64)
}

func NewMetricsService(metricsEnabled bool) Service {
	if metricsEnabled {
		return newPrometheusMetricsService()
	}
	return newNoopMetricsService()
}
