package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/n0rdy/approvals/audit"
	"github.com/n0rdy/approvals/billing"
	"github.com/n0rdy/approvals/classifier"
	"github.com/n0rdy/approvals/common"
	"github.com/n0rdy/approvals/db"
	"github.com/n0rdy/approvals/queue"
)

type memoryStore struct {
	mu      sync.Mutex
	rooms   map[string]*db.Room
	updates int
	failErr error
}

func newMemoryStore(rooms ...*db.Room) *memoryStore {
	ms := &memoryStore{rooms: make(map[string]*db.Room)}
	for _, r := range rooms {
		ms.rooms[r.Id] = r
	}
	return ms
}

func pendingRoom(id string, createdAt int64) *db.Room {
	return &db.Room{
		Id:          id,
		Title:       "Room " + id,
		Description: "Bright room near the market",
		Price:       3000000,
		FullAddress: "7 Hai Ba Trung",
		Approval:    common.PendingApproval,
		CreatedAt:   createdAt,
	}
}

func (ms *memoryStore) SelectRoom(ctx context.Context, roomId string) (*db.Room, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	r, ok := ms.rooms[roomId]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (ms *memoryStore) SelectPendingRoomIds(ctx context.Context) ([]string, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var pending []*db.Room
	for _, r := range ms.rooms {
		if r.Approval == common.PendingApproval {
			pending = append(pending, r)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt < pending[j].CreatedAt })

	ids := make([]string, 0, len(pending))
	for _, r := range pending {
		ids = append(ids, r.Id)
	}
	return ids, nil
}

func (ms *memoryStore) UpdateApprovalIfPending(ctx context.Context, update *db.ApprovalUpdate) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.failErr != nil {
		return false, ms.failErr
	}
	r, ok := ms.rooms[update.RoomId]
	if !ok || r.Approval != common.PendingApproval {
		return false, nil
	}
	ms.updates++
	r.Approval = update.Approval
	r.PostStartDate = update.PostStartDate
	r.PostEndDate = update.PostEndDate
	return true, nil
}

func (ms *memoryStore) approvalOf(id string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.rooms[id].Approval
}

func (ms *memoryStore) setApproval(id string, approval int) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.rooms[id].Approval = approval
}

func (ms *memoryStore) updateCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.updates
}

type memorySink struct {
	mu      sync.Mutex
	records []audit.Record
}

func (ms *memorySink) Append(ctx context.Context, record audit.Record) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.records = append(ms.records, record)
	return nil
}

func (ms *memorySink) forListing(listingId string) []audit.Record {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var found []audit.Record
	for _, r := range ms.records {
		if r.ListingId == listingId {
			found = append(found, r)
		}
	}
	return found
}

func (ms *memorySink) count() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.records)
}

type memoryPublisher struct {
	mu     sync.Mutex
	events []billing.ListingRejectedEvent
}

func (mp *memoryPublisher) PublishListingRejected(ctx context.Context, event billing.ListingRejectedEvent) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.events = append(mp.events, event)
	return nil
}

func (mp *memoryPublisher) count() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return len(mp.events)
}

type classifierFunc func(ctx context.Context, msg *queue.Message) (classifier.Decision, error)

func (f classifierFunc) Classify(ctx context.Context, msg *queue.Message) (classifier.Decision, error) {
	return f(ctx, msg)
}

func approveAll() classifierFunc {
	return func(ctx context.Context, msg *queue.Message) (classifier.Decision, error) {
		return classifier.Decision{Verdict: classifier.Approve, Reason: "ok"}, nil
	}
}

// failThenDecide fails the first failures calls per listing, then returns the verdict.
func failThenDecide(failures int, verdict classifier.Verdict) classifierFunc {
	var mu sync.Mutex
	calls := make(map[string]int)
	return func(ctx context.Context, msg *queue.Message) (classifier.Decision, error) {
		mu.Lock()
		calls[msg.ListingId]++
		n := calls[msg.ListingId]
		mu.Unlock()

		if n <= failures {
			return classifier.Decision{}, errors.Join(classifier.ErrClassificationTimeout, context.DeadlineExceeded)
		}
		return classifier.Decision{Verdict: verdict, Reason: "scripted"}, nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
