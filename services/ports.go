package services

import (
	"context"

	"github.com/n0rdy/approvals/classifier"
	"github.com/n0rdy/approvals/db"
	"github.com/n0rdy/approvals/queue"
)

type ListingStore interface {
	SelectRoom(ctx context.Context, roomId string) (*db.Room, error)
	SelectPendingRoomIds(ctx context.Context) ([]string, error)
	UpdateApprovalIfPending(ctx context.Context, update *db.ApprovalUpdate) (bool, error)
}

type Classifier interface {
	Classify(ctx context.Context, msg *queue.Message) (classifier.Decision, error)
}

// Resubmitter puts a retry of an in-flight message back at the end of the queue.
type Resubmitter interface {
	Requeue(msg *queue.Message) error
}
