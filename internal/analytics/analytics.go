// Package analytics records download lifecycle events.
package analytics

import (
	"context"
	"errors"
	"log/slog"

	"blobnet/internal/domain"
	"blobnet/internal/logger"
	"blobnet/internal/metrics"
)

var log = logger.Default()

// SetLogger sets the package logger.
func SetLogger(l *logger.Logger) {
	if l != nil {
		log = l.With("component", "analytics")
	}
}

// Event names written to the journal.
const (
	EventDownloadStarted  = "download_started"
	EventDownloadFinished = "download_finished"
	EventDownloadErrored  = "download_errored"
)

// JournalSink writes events to a rotated JSON journal and the debug log.
type JournalSink struct {
	journal *logger.Journal
}

// NewJournalSink opens a journal at path.
func NewJournalSink(path string) (*JournalSink, error) {
	j, err := logger.NewJournal(path, 0)
	if err != nil {
		return nil, err
	}
	return &JournalSink{journal: j}, nil
}

func (s *JournalSink) DownloadStarted(ctx context.Context, ev domain.DownloadEvent) error {
	s.record(ctx, EventDownloadStarted, ev)
	return nil
}

func (s *JournalSink) DownloadFinished(ctx context.Context, ev domain.DownloadEvent, report domain.DownloadReport) error {
	s.record(ctx, EventDownloadFinished, ev, reportGroup(report))
	return nil
}

func (s *JournalSink) DownloadErrored(ctx context.Context, ev domain.DownloadEvent, cause error, report domain.DownloadReport) error {
	s.record(ctx, EventDownloadErrored, ev, reportGroup(report), logger.ErrorGroup(cause))
	return nil
}

func (s *JournalSink) record(ctx context.Context, name string, ev domain.DownloadEvent, extra ...slog.Attr) {
	attrs := append([]slog.Attr{eventGroup(ev)}, extra...)
	s.journal.Record(ctx, name, attrs...)
	log.LogAttrs(ctx, slog.LevelDebug, name, attrs...)
}

// Close closes the journal.
func (s *JournalSink) Close() error {
	return s.journal.Close()
}

func eventGroup(ev domain.DownloadEvent) slog.Attr {
	return slog.Group("download",
		slog.String("id", ev.DownloadID),
		slog.String("name", ev.Name),
		slog.String("sd_hash", ev.DescriptorHash.String()),
		slog.String("claim_id", ev.ClaimID),
	)
}

func reportGroup(r domain.DownloadReport) slog.Attr {
	return slog.Group("report",
		slog.String("sd_hash", r.DescriptorHash.String()),
		slog.String("stream_hash", r.StreamHash),
		slog.String("sd_blob_host", r.DescriptorHost),
		slog.Int("known_blobs", r.KnownPieces),
	)
}

// MetricsSink counts events in Prometheus collectors.
type MetricsSink struct {
	m *metrics.Metrics
}

// NewMetricsSink creates a sink backed by m.
func NewMetricsSink(m *metrics.Metrics) *MetricsSink {
	return &MetricsSink{m: m}
}

func (s *MetricsSink) DownloadStarted(context.Context, domain.DownloadEvent) error {
	s.m.DownloadStarted()
	return nil
}

func (s *MetricsSink) DownloadFinished(context.Context, domain.DownloadEvent, domain.DownloadReport) error {
	s.m.DownloadFinished()
	return nil
}

func (s *MetricsSink) DownloadErrored(_ context.Context, _ domain.DownloadEvent, cause error, _ domain.DownloadReport) error {
	s.m.DownloadErrored(Category(cause))
	return nil
}

// Category buckets an error for reporting.
func Category(err error) string {
	switch {
	case err == nil:
		return "none"
	case domain.IsTimeout(err):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrDecode):
		return "decode"
	case errors.Is(err, domain.ErrTransport):
		return "transport"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrKeyFeeTooHigh):
		return "key_fee"
	default:
		return "other"
	}
}

// Multi fans events out to several sinks. Every sink is called even if
// an earlier one fails; the failures are joined.
type Multi []domain.AnalyticsSink

func (m Multi) DownloadStarted(ctx context.Context, ev domain.DownloadEvent) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.DownloadStarted(ctx, ev))
	}
	return errors.Join(errs...)
}

func (m Multi) DownloadFinished(ctx context.Context, ev domain.DownloadEvent, report domain.DownloadReport) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.DownloadFinished(ctx, ev, report))
	}
	return errors.Join(errs...)
}

func (m Multi) DownloadErrored(ctx context.Context, ev domain.DownloadEvent, cause error, report domain.DownloadReport) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.DownloadErrored(ctx, ev, cause, report))
	}
	return errors.Join(errs...)
}

// Nop discards every event.
type Nop struct{}

func (Nop) DownloadStarted(context.Context, domain.DownloadEvent) error { return nil }
func (Nop) DownloadFinished(context.Context, domain.DownloadEvent, domain.DownloadReport) error {
	return nil
}
func (Nop) DownloadErrored(context.Context, domain.DownloadEvent, error, domain.DownloadReport) error {
	return nil
}
