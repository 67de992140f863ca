package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/n0rdy/approvals/common"
	"github.com/n0rdy/approvals/metrics"
	"github.com/n0rdy/approvals/queue"

	"github.com/rs/zerolog/log"
)

var (
	ErrPoolAlreadyRunning = errors.New("worker pool is already running")
	ErrPoolNotRunning     = errors.New("worker pool is not running")
	ErrPoolStopTimeout    = errors.New("worker pool did not stop in time")
)

type PoolConfig struct {
	Steady          int
	Max             int
	BurstThreshold  int
	KeepAlive       time.Duration
	ShutdownTimeout time.Duration
}

// WorkerPool drains the approval queue. Steady workers live as long as the pool does, burst workers
// are added while the backlog is large and exit once they have been idle for the keep-alive period.
type WorkerPool struct {
	queue          *queue.ApprovalQueue
	classifier     Classifier
	recorder       *OutcomeRecorder
	metricsService metrics.Service
	cfg            PoolConfig

	mu        sync.Mutex
	isRunning bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	active    int
	nextId    int
	wg        sync.WaitGroup

	processed atomic.Int64
	failed    atomic.Int64
}

func NewWorkerPool(
	approvalQueue *queue.ApprovalQueue,
	classifier Classifier,
	recorder *OutcomeRecorder,
	metricsService metrics.Service,
	cfg PoolConfig,
) *WorkerPool {
	if cfg.Max < cfg.Steady {
		cfg.Max = cfg.Steady
	}
	return &WorkerPool{
		queue:          approvalQueue,
		classifier:     classifier,
		recorder:       recorder,
		metricsService: metricsService,
		cfg:            cfg,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.isRunning {
		return ErrPoolAlreadyRunning
	}
	wp.ctx, wp.cancel = context.WithCancel(ctx)
	wp.isRunning = true
	wp.startedAt = time.Now()

	for i := 0; i < wp.cfg.Steady; i++ {
		wp.spawnLocked(false)
	}
	log.Info().Int("steady", wp.cfg.Steady).Int("max", wp.cfg.Max).Msg("worker pool started")
	return nil
}

// Stop makes workers quit once their current message is finished, and waits for that up to the shutdown timeout.
func (wp *WorkerPool) Stop() error {
	wp.mu.Lock()
	if !wp.isRunning {
		wp.mu.Unlock()
		return ErrPoolNotRunning
	}
	wp.isRunning = false
	wp.cancel()
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Int64("processed", wp.processed.Load()).Msg("worker pool stopped")
		return nil
	case <-time.After(wp.cfg.ShutdownTimeout):
		log.Error().Dur("timeout", wp.cfg.ShutdownTimeout).Msg("worker pool did not stop in time")
		return ErrPoolStopTimeout
	}
}

// ProcessBacklog starts burst workers up to the ceiling while there is a backlog. It does not wait for them.
// Returns the number of workers started.
func (wp *WorkerPool) ProcessBacklog() (int, error) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.isRunning {
		return 0, ErrPoolNotRunning
	}

	started := 0
	for wp.active < wp.cfg.Max && wp.queue.Size() > started {
		wp.spawnLocked(true)
		started++
	}
	log.Info().Int("started", started).Int("active", wp.active).Int("queue_size", wp.queue.Size()).Msg("backlog processing requested")
	return started, nil
}

func (wp *WorkerPool) Status() common.WorkersStatusResponse {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	var startedAt int64
	if wp.isRunning {
		startedAt = wp.startedAt.UnixMilli()
	}
	return common.WorkersStatusResponse{
		IsRunning:     wp.isRunning,
		StartedAt:     startedAt,
		ActiveWorkers: wp.active,
		SteadyWorkers: wp.cfg.Steady,
		MaxWorkers:    wp.cfg.Max,
		Processed:     wp.processed.Load(),
		Failed:        wp.failed.Load(),
	}
}

func (wp *WorkerPool) ActiveWorkers() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.active
}

// must be called with wp.mu held
func (wp *WorkerPool) spawnLocked(burst bool) {
	wp.active++
	wp.nextId++
	wp.wg.Add(1)
	wp.metricsService.SetActiveWorkers(int64(wp.active))
	go wp.run(wp.ctx, wp.nextId, burst)
}

func (wp *WorkerPool) maybeBurst() {
	if wp.cfg.BurstThreshold <= 0 || wp.queue.Size() < wp.cfg.BurstThreshold {
		return
	}

	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.isRunning && wp.active < wp.cfg.Max {
		wp.spawnLocked(true)
		log.Info().Int("active", wp.active).Int("queue_size", wp.queue.Size()).Msg("burst worker started")
	}
}

func (wp *WorkerPool) run(ctx context.Context, workerId int, burst bool) {
	defer func() {
		wp.mu.Lock()
		wp.active--
		wp.metricsService.SetActiveWorkers(int64(wp.active))
		wp.mu.Unlock()
		wp.wg.Done()
	}()

	for {
		msg, err := wp.next(ctx, burst)
		if err != nil {
			if burst && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				log.Debug().Int("worker_id", workerId).Msg("burst worker idle, exiting")
			}
			return
		}

		wp.maybeBurst()
		wp.process(ctx, workerId, msg)
	}
}

func (wp *WorkerPool) next(ctx context.Context, burst bool) (*queue.Message, error) {
	if !burst {
		return wp.queue.Dequeue(ctx)
	}
	idleCtx, cancel := context.WithTimeout(ctx, wp.cfg.KeepAlive)
	defer cancel()
	return wp.queue.Dequeue(idleCtx)
}

func (wp *WorkerPool) process(ctx context.Context, workerId int, msg *queue.Message) {
	// a dequeued message is finished even if the pool is stopping
	ctx = context.WithoutCancel(ctx)

	start := time.Now()
	decision, err := wp.classifier.Classify(ctx, msg)
	wp.metricsService.ObserveClassificationDuration(time.Since(start).Seconds())

	var outcome Outcome
	if err != nil {
		wp.failed.Add(1)
		outcome = wp.recorder.RecordFailure(ctx, msg, err)
	} else {
		outcome = wp.recorder.RecordDecision(ctx, msg, decision)
	}

	if !outcome.Resubmitted() {
		wp.queue.Release(msg.ListingId)
	}
	wp.processed.Add(1)

	log.Debug().
		Int("worker_id", workerId).
		Str("listing_id", msg.ListingId).
		Str("outcome", outcome.String()).
		Dur("took", time.Since(start)).
		Msg("message processed")
}
