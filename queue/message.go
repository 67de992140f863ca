package queue

import (
	"time"

	"github.com/google/uuid"
	"github.com/n0rdy/approvals/common"
)

// ListingSnapshot is the listing content captured at enqueue time.
// Later edits to the listing do not affect a decision already in flight.
type ListingSnapshot struct {
	Title            string
	Description      string
	Price            float64
	Deposit          float64
	Area             float64
	Length           float64
	Width            float64
	MaxPeople        int
	ElectricityPrice float64
	WaterPrice       float64
	InternetPrice    float64
	FullAddress      string
	Amenities        []string
	ImageUrls        []string
}

// Message is a single attempt to classify a listing. Messages are never mutated once
// enqueued: a retry is a new Message built by NextAttempt.
type Message struct {
	Id              string
	ListingId       string
	Snapshot        ListingSnapshot
	RetryCount      int
	Source          string
	EnqueuedAt      time.Time
	FirstEnqueuedAt time.Time
}

func NewMessage(listingId string, snapshot ListingSnapshot, source string) *Message {
	now := time.Now()
	return &Message{
		Id:              newMessageId(),
		ListingId:       listingId,
		Snapshot:        snapshot,
		Source:          source,
		EnqueuedAt:      now,
		FirstEnqueuedAt: now,
	}
}

// NextAttempt returns the message of the next attempt in the same lineage.
func (m *Message) NextAttempt() *Message {
	return &Message{
		Id:              newMessageId(),
		ListingId:       m.ListingId,
		Snapshot:        m.Snapshot,
		RetryCount:      m.RetryCount + 1,
		Source:          common.RetrySource,
		EnqueuedAt:      time.Now(),
		FirstEnqueuedAt: m.FirstEnqueuedAt,
	}
}

func newMessageId() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does
		return uuid.NewString()
	}
	return id.String()
}
