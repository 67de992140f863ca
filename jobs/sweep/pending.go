package sweep

import (
	"context"
	"time"

	"github.com/n0rdy/approvals/common"

	"github.com/rs/zerolog/log"
)

type PendingEnqueuer interface {
	EnqueueAllPending(ctx context.Context, source string) (int, error)
}

// PendingSweepJob periodically submits pending listings that were never enqueued, or were cleared
// or dropped since.
type PendingSweepJob struct {
	ticker *time.Ticker
	done   chan struct{}
}

func NewPendingSweepJob(enqueuer PendingEnqueuer, intervalMs int64) *PendingSweepJob {
	interval := time.Duration(intervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				ctx, cancelFunc := context.WithTimeout(context.Background(), runTimeout(interval))
				count, err := enqueuer.EnqueueAllPending(ctx, common.SweepSource)
				if err != nil {
					log.Error().Err(err).Msg("failed to enqueue pending listings by PendingSweepJob")
				} else if count > 0 {
					log.Info().Int("enqueued", count).Msg("pending listings picked up by PendingSweepJob")
				}
				cancelFunc()
			case <-done:
				return
			}
		}
	}()

	return &PendingSweepJob{
		ticker: ticker,
		done:   done,
	}
}

func (j *PendingSweepJob) Close() error {
	j.ticker.Stop()
	close(j.done)
	return nil
}

// a run has to finish before the next tick
func runTimeout(interval time.Duration) time.Duration {
	if interval > 2*time.Second {
		return interval - time.Second
	}
	return interval
}
