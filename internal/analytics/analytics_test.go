package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"blobnet/internal/domain"
	"blobnet/internal/metrics"
)

var testEvent = domain.DownloadEvent{
	DownloadID:     "dl-1",
	Name:           "lbry://movie",
	DescriptorHash: domain.ContentDescriptorID(strings.Repeat("a", domain.HashLength)),
	ClaimID:        "beef",
}

var testReport = domain.DownloadReport{
	DescriptorHash: testEvent.DescriptorHash,
	StreamHash:     "stream",
	DescriptorHost: domain.UnknownHost,
	KnownPieces:    3,
}

func TestJournalSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events", "downloads.jsonl")
	sink, err := NewJournalSink(path)
	if err != nil {
		t.Fatalf("NewJournalSink() error = %v", err)
	}

	ctx := context.Background()
	sink.DownloadStarted(ctx, testEvent)
	sink.DownloadFinished(ctx, testEvent, testReport)
	sink.DownloadErrored(ctx, testEvent, fmt.Errorf("fetch: %w", domain.ErrTimeout), testReport)
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("journal has %d lines, want 3", len(lines))
	}

	wantMsgs := []string{EventDownloadStarted, EventDownloadFinished, EventDownloadErrored}
	for i, line := range lines {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("line %d not JSON: %v", i, err)
		}
		if rec["msg"] != wantMsgs[i] {
			t.Errorf("line %d msg = %v, want %s", i, rec["msg"], wantMsgs[i])
		}
		dl, _ := rec["download"].(map[string]any)
		if dl["id"] != "dl-1" {
			t.Errorf("line %d download.id = %v", i, dl["id"])
		}
	}

	var errored map[string]any
	json.Unmarshal([]byte(lines[2]), &errored)
	report, _ := errored["report"].(map[string]any)
	if report["sd_blob_host"] != domain.UnknownHost || report["known_blobs"] != float64(3) {
		t.Errorf("report = %v", report)
	}
	if _, ok := errored["error"]; !ok {
		t.Error("errored event has no error group")
	}
}

func TestCategory(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{domain.ErrTimeout, "timeout"},
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "canceled"},
		{fmt.Errorf("x: %w", domain.ErrNotFound), "not_found"},
		{domain.ErrDecode, "decode"},
		{domain.ErrTransport, "transport"},
		{domain.ErrInvalidInput, "invalid_input"},
		{domain.ErrKeyFeeTooHigh, "key_fee"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		if got := Category(tt.err); got != tt.want {
			t.Errorf("Category(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

type failingSink struct {
	Nop
	calls int
}

func (f *failingSink) DownloadFinished(context.Context, domain.DownloadEvent, domain.DownloadReport) error {
	f.calls++
	return errors.New("sink down")
}

type countingSink struct {
	Nop
	finished int
}

func (c *countingSink) DownloadFinished(context.Context, domain.DownloadEvent, domain.DownloadReport) error {
	c.finished++
	return nil
}

func TestMulti_CallsEverySink(t *testing.T) {
	failing := &failingSink{}
	counting := &countingSink{}
	multi := Multi{failing, counting, NewMetricsSink(metrics.New())}

	err := multi.DownloadFinished(context.Background(), testEvent, testReport)
	if err == nil || !strings.Contains(err.Error(), "sink down") {
		t.Errorf("DownloadFinished() error = %v, want joined sink error", err)
	}
	if failing.calls != 1 || counting.finished != 1 {
		t.Errorf("calls = %d/%d, want 1/1", failing.calls, counting.finished)
	}

	if err := multi.DownloadStarted(context.Background(), testEvent); err != nil {
		t.Errorf("DownloadStarted() error = %v", err)
	}
	if err := multi.DownloadErrored(context.Background(), testEvent, domain.ErrTimeout, testReport); err != nil {
		t.Errorf("DownloadErrored() error = %v", err)
	}
}
