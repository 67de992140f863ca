package queue

import (
	"context"
	"sync"

	"github.com/n0rdy/approvals/common"
)

// ApprovalQueue is a fixed-capacity FIFO of approval messages.
// Enqueueing never blocks, dequeueing blocks until a message is available.
// A listing is tracked from the moment it is enqueued until its worker releases it,
// so it can be neither queued twice nor queued while it is being processed.
type ApprovalQueue struct {
	mu       sync.Mutex
	items    []*Message
	capacity int
	queued   map[string]int
	inFlight map[string]struct{}
	notify   chan struct{} // closed and replaced on every enqueue to wake up waiting consumers
	closed   bool
}

func NewApprovalQueue(capacity int) *ApprovalQueue {
	return &ApprovalQueue{
		items:    make([]*Message, 0, capacity),
		capacity: capacity,
		queued:   make(map[string]int),
		inFlight: make(map[string]struct{}),
		notify:   make(chan struct{}),
	}
}

// TryEnqueue appends the message if the queue has room and the listing is neither queued nor in flight.
func (q *ApprovalQueue) TryEnqueue(msg *Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return common.ErrUnavailableQueueClosed
	}
	if q.isTracked(msg.ListingId) {
		return common.ErrConflictAlreadyQueued
	}
	return q.push(msg)
}

// Requeue releases the in-flight lineage of the message and appends the message to the back of the queue.
// The in-flight mark is released even if the queue turns out to be full.
func (q *ApprovalQueue) Requeue(msg *Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.inFlight, msg.ListingId)
	if q.closed {
		return common.ErrUnavailableQueueClosed
	}
	if q.queued[msg.ListingId] > 0 {
		return common.ErrConflictAlreadyQueued
	}
	return q.push(msg)
}

// Dequeue takes the oldest message and marks its listing as in flight.
func (q *ApprovalQueue) Dequeue(ctx context.Context) (*Message, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			msg := q.pop()
			q.inFlight[msg.ListingId] = struct{}{}
			q.mu.Unlock()
			return msg, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, common.ErrUnavailableQueueClosed
		}
		wait := q.notify
		q.mu.Unlock()

		select {
		case <-wait:
			// something was enqueued or the queue was closed, try again
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release ends the in-flight state of the listing once its message reached a terminal outcome.
func (q *ApprovalQueue) Release(listingId string) {
	q.mu.Lock()
	delete(q.inFlight, listingId)
	q.mu.Unlock()
}

// DrainAll removes and returns all queued messages. In-flight messages are not affected.
func (q *ApprovalQueue) DrainAll() []*Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.items
	q.items = make([]*Message, 0, q.capacity)
	q.queued = make(map[string]int)
	return drained
}

func (q *ApprovalQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *ApprovalQueue) Capacity() int {
	return q.capacity
}

func (q *ApprovalQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inFlight)
}

// Contains reports whether the listing is queued or in flight.
func (q *ApprovalQueue) Contains(listingId string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.isTracked(listingId)
}

// QueuedIds returns the listing ids in queue order.
func (q *ApprovalQueue) QueuedIds() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]string, 0, len(q.items))
	for _, msg := range q.items {
		ids = append(ids, msg.ListingId)
	}
	return ids
}

// CountInstancesOf scans the queued messages for the listing. Anything other than 0 or 1 is a bug.
func (q *ApprovalQueue) CountInstancesOf(listingId string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	for _, msg := range q.items {
		if msg.ListingId == listingId {
			count++
		}
	}
	return count
}

// Close wakes up all waiting consumers. Queued messages can still be dequeued, new ones are refused.
func (q *ApprovalQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.notify)
}

func (q *ApprovalQueue) isTracked(listingId string) bool {
	if q.queued[listingId] > 0 {
		return true
	}
	_, ok := q.inFlight[listingId]
	return ok
}

// push expects the lock to be held
func (q *ApprovalQueue) push(msg *Message) error {
	if len(q.items) >= q.capacity {
		return common.ErrUnavailableQueueFull
	}
	q.items = append(q.items, msg)
	q.queued[msg.ListingId]++

	close(q.notify)
	q.notify = make(chan struct{})
	return nil
}

// pop expects the lock to be held and the queue to be non-empty
func (q *ApprovalQueue) pop() *Message {
	msg := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]

	if q.queued[msg.ListingId] <= 1 {
		delete(q.queued, msg.ListingId)
	} else {
		q.queued[msg.ListingId]--
	}
	return msg
}
