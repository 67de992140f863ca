package metrics

import (
	"time"

	"github.com/n0rdy/approvals/metrics"
)

type QueueStats interface {
	Size() int
	InFlight() int
}

type WorkerStats interface {
	ActiveWorkers() int
}

type QueueDepthMetricsJob struct {
	ticker *time.Ticker
	done   chan struct{}
}

func NewQueueDepthMetricsJob(metricsService metrics.Service, queue QueueStats, workers WorkerStats, intervalMs int64) *QueueDepthMetricsJob {
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				metricsService.SetQueueDepth(int64(queue.Size()))
				metricsService.SetInFlight(int64(queue.InFlight()))
				metricsService.SetActiveWorkers(int64(workers.ActiveWorkers()))
			case <-done:
				return
			}
		}
	}()

	return &QueueDepthMetricsJob{
		ticker: ticker,
		done:   done,
	}
}

func (j *QueueDepthMetricsJob) Close() error {
	j.ticker.Stop()
	close(j.done)
	return nil
}
