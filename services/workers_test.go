package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/n0rdy/approvals/classifier"
	"github.com/n0rdy/approvals/common"
	"github.com/n0rdy/approvals/metrics"
	"github.com/n0rdy/approvals/queue"
)

type pipeline struct {
	store     *memoryStore
	sink      *memorySink
	publisher *memoryPublisher
	queue     *queue.ApprovalQueue
	gateway   *EnqueueGateway
	pool      *WorkerPool
}

func newPipeline(t *testing.T, store *memoryStore, c Classifier, cfg PoolConfig) *pipeline {
	t.Helper()
	metricsService := metrics.NewMetricsService(false)
	p := &pipeline{
		store:     store,
		sink:      &memorySink{},
		publisher: &memoryPublisher{},
		queue:     queue.NewApprovalQueue(10),
	}
	recorder := NewOutcomeRecorder(store, p.sink, p.publisher, p.queue, metricsService, RecorderConfig{
		MaxRetries:   3,
		PostDuration: time.Hour,
	})
	p.gateway = NewEnqueueGateway(store, p.queue, metricsService)
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = time.Minute
	}
	p.pool = NewWorkerPool(p.queue, c, recorder, metricsService, cfg)
	return p
}

func (p *pipeline) start(t *testing.T) {
	t.Helper()
	if err := p.pool.Start(context.Background()); err != nil {
		t.Fatalf("failed to start pool: %v", err)
	}
	t.Cleanup(func() { p.pool.Stop() })
}

func TestPoolApprovesPendingListings(t *testing.T) {
	store := newMemoryStore(pendingRoom("room-1", 1), pendingRoom("room-2", 2), pendingRoom("room-3", 3))
	p := newPipeline(t, store, approveAll(), PoolConfig{Steady: 2, Max: 3})
	p.start(t)

	count, err := p.gateway.EnqueueAllPending(context.Background(), common.BulkSource)
	if err != nil || count != 3 {
		t.Fatalf("expected 3 enqueued, got %d (%v)", count, err)
	}
	waitFor(t, "all listings processed", func() bool { return p.pool.Status().Processed == 3 })

	for _, id := range []string{"room-1", "room-2", "room-3"} {
		if store.approvalOf(id) != common.ApprovedApproval {
			t.Fatalf("expected %s approved", id)
		}
		if records := p.sink.forListing(id); len(records) != 1 || records[0].Outcome != common.ApprovedOutcome {
			t.Fatalf("expected one approved record for %s, got %+v", id, records)
		}
	}
	if store.updateCount() != 3 {
		t.Fatalf("expected exactly one storage write per listing, got %d", store.updateCount())
	}
	waitFor(t, "lineages released", func() bool { return p.queue.InFlight() == 0 })
}

func TestPoolRetriesUntilDecision(t *testing.T) {
	store := newMemoryStore(pendingRoom("room-1", 1))
	p := newPipeline(t, store, failThenDecide(2, classifier.Reject), PoolConfig{Steady: 1, Max: 1})
	p.start(t)

	if err := p.gateway.EnqueueOne(context.Background(), "room-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "listing rejected", func() bool { return len(p.sink.forListing("room-1")) == 3 })

	records := p.sink.forListing("room-1")
	expected := []string{common.ClassificationFailedOutcome, common.ClassificationFailedOutcome, common.RejectedOutcome}
	for i, r := range records {
		if r.Outcome != expected[i] || r.RetryCount != i {
			t.Fatalf("record %d: expected %s with retry %d, got %s with retry %d", i, expected[i], i, r.Outcome, r.RetryCount)
		}
	}
	if store.approvalOf("room-1") != common.RejectedApproval {
		t.Fatalf("expected rejected listing")
	}
	if p.publisher.count() != 1 {
		t.Fatalf("expected one rejection event, got %d", p.publisher.count())
	}
	waitFor(t, "lineage released", func() bool { return !p.queue.Contains("room-1") })
	if p.pool.Status().Failed != 2 {
		t.Fatalf("expected 2 failed attempts, got %d", p.pool.Status().Failed)
	}
}

func TestPoolSendsListingToManualReview(t *testing.T) {
	store := newMemoryStore(pendingRoom("room-1", 1))
	p := newPipeline(t, store, failThenDecide(100, classifier.Approve), PoolConfig{Steady: 1, Max: 1})
	p.start(t)

	p.gateway.EnqueueOne(context.Background(), "room-1")
	waitFor(t, "manual review", func() bool {
		records := p.sink.forListing("room-1")
		return len(records) == 4 && records[3].Outcome == common.ManualReviewOutcome
	})
	waitFor(t, "lineage released", func() bool { return !p.queue.Contains("room-1") })
	if store.approvalOf("room-1") != common.PendingApproval {
		t.Fatalf("the listing must stay pending")
	}
}

func TestProcessBacklogStartsBurstWorkers(t *testing.T) {
	release := make(chan struct{})
	blocking := classifierFunc(func(ctx context.Context, msg *queue.Message) (classifier.Decision, error) {
		<-release
		return classifier.Decision{Verdict: classifier.Approve}, nil
	})

	store := newMemoryStore(pendingRoom("room-1", 1), pendingRoom("room-2", 2), pendingRoom("room-3", 3), pendingRoom("room-4", 4))
	p := newPipeline(t, store, blocking, PoolConfig{Steady: 1, Max: 3, KeepAlive: 20 * time.Millisecond})
	p.start(t)
	p.gateway.EnqueueAllPending(context.Background(), common.BulkSource)

	if _, err := p.pool.ProcessBacklog(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "burst workers", func() bool { return p.pool.ActiveWorkers() == 3 })
	if p.pool.ActiveWorkers() > 3 {
		t.Fatalf("the ceiling must never be exceeded")
	}

	close(release)
	waitFor(t, "all listings processed", func() bool { return p.pool.Status().Processed == 4 })
	waitFor(t, "burst workers to go idle", func() bool { return p.pool.ActiveWorkers() == 1 })
}

func TestStopWaitsForInFlightMessage(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	slow := classifierFunc(func(ctx context.Context, msg *queue.Message) (classifier.Decision, error) {
		close(started)
		<-release
		return classifier.Decision{Verdict: classifier.Approve}, ctx.Err()
	})

	store := newMemoryStore(pendingRoom("room-1", 1))
	p := newPipeline(t, store, slow, PoolConfig{Steady: 1, Max: 1})
	if err := p.pool.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.gateway.EnqueueOne(context.Background(), "room-1")
	<-started

	stopped := make(chan error)
	go func() { stopped <- p.pool.Stop() }()
	time.Sleep(20 * time.Millisecond)
	close(release)

	if err := <-stopped; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.approvalOf("room-1") != common.ApprovedApproval {
		t.Fatalf("the in-flight message must be finished, not cancelled")
	}
	if err := p.pool.Stop(); !errors.Is(err, ErrPoolNotRunning) {
		t.Fatalf("expected not running, got %v", err)
	}
}

func TestStartTwiceFails(t *testing.T) {
	p := newPipeline(t, newMemoryStore(), approveAll(), PoolConfig{Steady: 1, Max: 1})
	p.start(t)
	if err := p.pool.Start(context.Background()); !errors.Is(err, ErrPoolAlreadyRunning) {
		t.Fatalf("expected already running, got %v", err)
	}
	if !p.pool.Status().IsRunning {
		t.Fatalf("expected running status")
	}
}
