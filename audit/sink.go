package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Record struct {
	Id           string
	Timestamp    time.Time
	ListingId    string
	ListingTitle string
	Outcome      string
	Reason       string
	RetryCount   int
}

func NewRecord(listingId string, listingTitle string, outcome string, reason string, retryCount int) Record {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Record{
		Id:           id.String(),
		Timestamp:    time.Now().UTC(),
		ListingId:    listingId,
		ListingTitle: listingTitle,
		Outcome:      outcome,
		Reason:       reason,
		RetryCount:   retryCount,
	}
}

// Sink is an append-only destination for approval outcomes.
type Sink interface {
	Append(ctx context.Context, record Record) error
}

// MultiSink appends to every sink, a failing sink does not prevent the others from receiving the record.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (ms *MultiSink) Append(ctx context.Context, record Record) error {
	var errs []error
	for _, s := range ms.sinks {
		if err := s.Append(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
