package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/n0rdy/approvals/common"
)

type failingSink struct{}

func (failingSink) Append(ctx context.Context, record Record) error {
	return errors.New("boom")
}

type countingSink struct {
	records []Record
}

func (cs *countingSink) Append(ctx context.Context, record Record) error {
	cs.records = append(cs.records, record)
	return nil
}

func TestCSVSinkWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")
	sink := NewCSVSink(path)

	first := NewRecord("room-1", "Studio, with a comma", common.ApprovedOutcome, "looks fine", 0)
	second := NewRecord("room-2", "Loft", common.RejectedOutcome, "spam", 1)
	if err := sink.Append(context.Background(), first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sink.Append(context.Background(), second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open audit log: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse audit log: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and 2 rows, got %d rows", len(rows))
	}
	if rows[0][0] != "id" {
		t.Fatalf("expected header first, got %v", rows[0])
	}
	if rows[1][3] != "Studio, with a comma" || rows[1][4] != common.ApprovedOutcome {
		t.Fatalf("unexpected first row: %v", rows[1])
	}
	if rows[2][6] != "1" {
		t.Fatalf("expected retry count 1, got %s", rows[2][6])
	}
}

func TestWebhookSinkPostsText(t *testing.T) {
	var received webhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		json.NewDecoder(req.Body).Decode(&received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, time.Second)
	record := NewRecord("room-1", "Loft", common.ManualReviewOutcome, "timeout", 3)
	if err := sink.Append(context.Background(), record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(received.Text, common.ManualReviewOutcome) || !strings.Contains(received.Text, "retry 3") {
		t.Fatalf("unexpected webhook text: %q", received.Text)
	}
}

func TestWebhookSinkReportsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewWebhookSink(server.URL, time.Second).Append(context.Background(), NewRecord("room-1", "Loft", common.ApprovedOutcome, "", 0))
	if err == nil {
		t.Fatalf("expected an error for a 502 response")
	}
}

func TestMultiSinkKeepsGoingAfterFailure(t *testing.T) {
	counting := &countingSink{}
	sink := NewMultiSink(failingSink{}, counting)

	err := sink.Append(context.Background(), NewRecord("room-1", "Loft", common.ApprovedOutcome, "", 0))
	if err == nil {
		t.Fatalf("expected the failing sink error to be reported")
	}
	if len(counting.records) != 1 {
		t.Fatalf("expected the healthy sink to receive the record, got %d", len(counting.records))
	}
}
