package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Journal appends structured events as JSON lines to a rotated file.
// A nil *Journal discards everything.
type Journal struct {
	logger *slog.Logger
	closer *lumberjack.Logger
}

// NewJournal opens a journal at path, creating its directory.
func NewJournal(path string, maxAgeDays int) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	lj := &lumberjack.Logger{
		Filename: path,
		MaxSize:  50,
		MaxAge:   orDefault(maxAgeDays, 90),
		Compress: true,
	}

	return &Journal{
		logger: slog.New(slog.NewJSONHandler(lj, &slog.HandlerOptions{Level: slog.LevelInfo})),
		closer: lj,
	}, nil
}

// Record writes one event. The request id from ctx is attached when present.
func (j *Journal) Record(ctx context.Context, event string, attrs ...slog.Attr) {
	if j == nil {
		return
	}
	attrs = append(attrs, slog.Time("recorded_at", time.Now().UTC()))
	if cc := CommandContextFrom(ctx); cc != nil {
		attrs = append(attrs, slog.String("request_id", cc.RequestID))
	}
	j.logger.LogAttrs(ctx, slog.LevelInfo, event, attrs...)
}

// Close closes the journal file.
func (j *Journal) Close() error {
	if j != nil && j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
