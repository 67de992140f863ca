package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

var csvHeader = []string{"id", "timestamp", "listing_id", "listing_title", "outcome", "reason", "retry_count"}

// CSVSink appends one line per record to a local CSV file.
type CSVSink struct {
	path string
	mu   sync.Mutex
}

func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (cs *CSVSink) Append(ctx context.Context, record Record) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	f, err := os.OpenFile(cs.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat audit log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("write audit log header: %w", err)
		}
	}
	err = w.Write([]string{
		record.Id,
		record.Timestamp.Format(time.RFC3339),
		record.ListingId,
		record.ListingTitle,
		record.Outcome,
		record.Reason,
		strconv.Itoa(record.RetryCount),
	})
	if err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	w.Flush()
	return w.Error()
}
