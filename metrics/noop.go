package metrics

type NoopMetricsService struct {
}

func newNoopMetricsService() *NoopMetricsService {
	return &NoopMetricsService{}
}

func (nms *NoopMetricsService) IncMessagesEnqueuedTotalBy(count int64, source string) {
	// no-op
}

func (nms *NoopMetricsService) IncEnqueueRejectedTotal(reason string) {
	// no-op
}

func (nms *NoopMetricsService) IncMessagesClearedTotalBy(count int64) {
	// no-op
}

func (nms *NoopMetricsService) IncDecisionsTotal(verdict string) {
	// no-op
}

func (nms *NoopMetricsService) IncFailuresTotal(reason string) {
	// no-op
}

func (nms *NoopMetricsService) IncRetriesTotal() {
	// no-op
}

func (nms *NoopMetricsService) ObserveClassificationDuration(seconds float64) {
	// no-op
}

func (nms *NoopMetricsService) SetQueueDepth(depth int64) {
	// no-op
}

func (nms *NoopMetricsService) SetInFlight(count int64) {
	// no-op
}

func (nms *NoopMetricsService) SetActiveWorkers(count int64) {
	// no-op
}
