// Package transfer downloads a stream: it fetches the descriptor, then
// every content piece, and assembles them into a file in the download
// directory while recording progress in metadata storage.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"blobnet/internal/domain"
	"blobnet/internal/logger"
	"blobnet/internal/storage"
)

var log = logger.Default()

// SetLogger sets the logger for transfers.
func SetLogger(l *logger.Logger) {
	if l != nil {
		log = l.With("component", "transfer")
	}
}

// ErrStopped is the stop reason used when Stop is called with nil.
var ErrStopped = errors.New("transfer stopped")

// Config holds transfer configuration.
type Config struct {
	// DownloadDir receives assembled files.
	DownloadDir string

	// Workers is the number of concurrent piece fetches.
	Workers int

	// PieceRetries is the number of attempts per piece.
	PieceRetries int

	// BlobTimeout bounds each piece fetch.
	BlobTimeout time.Duration

	// StartTimeout bounds the time until the first piece is written
	// when a request does not set one.
	StartTimeout time.Duration
}

// DefaultConfig returns default transfer configuration.
func DefaultConfig() Config {
	return Config{
		Workers:      4,
		PieceRetries: 3,
		BlobTimeout:  30 * time.Second,
		StartTimeout: 180 * time.Second,
	}
}

// Request describes one stream to download.
type Request struct {
	DescriptorID domain.ContentDescriptorID

	// Claim is the claim the stream was reached through; may be nil.
	Claim *domain.ResolvedClaim

	// FileName overrides the descriptor's suggested file name.
	FileName string

	// Timeout bounds the time until the first piece is written.
	Timeout time.Duration

	// PointsPaid is recorded on the file row.
	PointsPaid decimal.Decimal
}

// Manager creates transfers sharing one fetcher and store.
type Manager struct {
	fetcher domain.BlobFetcher
	store   storage.Store
	cfg     Config
}

// NewManager creates a transfer manager.
func NewManager(fetcher domain.BlobFetcher, store storage.Store, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.PieceRetries <= 0 {
		cfg.PieceRetries = def.PieceRetries
	}
	if cfg.BlobTimeout <= 0 {
		cfg.BlobTimeout = def.BlobTimeout
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = def.StartTimeout
	}
	return &Manager{fetcher: fetcher, store: store, cfg: cfg}
}

// New returns a transfer for req. Nothing happens until Run.
func (m *Manager) New(req Request) *Transfer {
	if req.Timeout <= 0 {
		req.Timeout = m.cfg.StartTimeout
	}
	return &Transfer{m: m, req: req, state: domain.SessionInitializing}
}

// Transfer is one stream download.
type Transfer struct {
	m   *Manager
	req Request

	mu         sync.Mutex
	state      domain.SessionState
	cancel     context.CancelCauseFunc
	stopReason error
	artifact   *domain.Artifact
}

// State returns the current lifecycle state.
func (t *Transfer) State() domain.SessionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Artifact returns a snapshot of the file being written, or nil before
// the descriptor has been fetched.
func (t *Transfer) Artifact() *domain.Artifact {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.artifact == nil {
		return nil
	}
	a := *t.artifact
	return &a
}

// Stop interrupts the transfer with reason. Stopping twice, or stopping
// a finished transfer, only records the state.
func (t *Transfer) Stop(reason error) {
	if reason == nil {
		reason = ErrStopped
	}

	t.mu.Lock()
	if t.stopReason == nil {
		t.stopReason = reason
	}
	if t.cancel != nil {
		t.cancel(reason)
	}
	changed := !t.state.IsTerminal()
	if changed {
		t.state = domain.SessionStopped
	}
	var sdHash domain.ContentDescriptorID
	if t.artifact != nil && changed {
		t.artifact.Status = domain.SessionStopped
		t.artifact.Stopped = true
		sdHash = t.artifact.DescriptorHash
	}
	t.mu.Unlock()

	if sdHash != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.m.store.Files().UpdateStatus(ctx, sdHash, domain.SessionStopped, false); err != nil && !storage.IsNotFound(err) {
			log.Warn("failed to record stopped transfer", "sd_hash", sdHash, "error", err)
		}
	}
	log.Debug("transfer stopped", "sd_hash", t.req.DescriptorID, "reason", reason)
}

// Run downloads the stream and returns the completed file. It fails
// with domain.ErrTimeout when no piece is written within the request
// timeout.
func (t *Transfer) Run(ctx context.Context) (*domain.Artifact, error) {
	if err := t.req.DescriptorID.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	t.mu.Lock()
	if t.stopReason != nil {
		reason := t.stopReason
		t.mu.Unlock()
		return nil, reason
	}
	t.cancel = cancel
	t.mu.Unlock()

	logger := log.With("sd_hash", t.req.DescriptorID)
	timeout := t.req.Timeout
	startTimer := time.AfterFunc(timeout, func() {
		cancel(fmt.Errorf("%w: download did not start within %s", domain.ErrTimeout, timeout))
	})
	defer startTimer.Stop()

	t.setState(domain.SessionFetchingMetadata)
	sd, err := t.fetchDescriptor(ctx)
	if err != nil {
		return nil, t.fail(ctx, err, false)
	}

	a, err := t.prepareFile(ctx, sd)
	if err != nil {
		return nil, t.fail(ctx, err, false)
	}

	t.setState(domain.SessionRunning)
	if err := t.m.store.Files().UpdateStatus(ctx, a.DescriptorHash, domain.SessionRunning, false); err != nil {
		logger.Warn("failed to record running transfer", "error", err)
	}
	logger.Info("transfer started", "file", a.DownloadPath, "pieces", sd.ContentPieceCount(), "bytes", sd.TotalSize)

	if err := t.fetchPieces(ctx, sd, a, startTimer); err != nil {
		return nil, t.fail(ctx, err, true)
	}

	t.mu.Lock()
	t.artifact.Completed = true
	t.artifact.Status = domain.SessionStopped
	t.artifact.Stopped = true
	t.state = domain.SessionStopped
	done := *t.artifact
	t.mu.Unlock()

	if err := t.m.store.Files().UpdateStatus(context.WithoutCancel(ctx), a.DescriptorHash, domain.SessionStopped, true); err != nil {
		logger.Warn("failed to record completed transfer", "error", err)
	}
	logger.Info("transfer finished", "file", done.DownloadPath, "bytes", done.WrittenBytes)
	return &done, nil
}

func (t *Transfer) setState(s domain.SessionState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.IsTerminal() {
		t.state = s
	}
}

// fail resolves the error Run returns. A canceled context reports its
// cause. Failures of a running transfer also end its state.
func (t *Transfer) fail(ctx context.Context, err error, running bool) error {
	if ctx.Err() != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			err = cause
		}
	}

	final := domain.SessionStopped
	if domain.IsTimeout(err) {
		final = domain.SessionTimedOut
	} else if !running {
		return err
	}

	t.mu.Lock()
	if !t.state.IsTerminal() {
		t.state = final
	}
	var sdHash domain.ContentDescriptorID
	if t.artifact != nil {
		t.artifact.Status = t.state
		t.artifact.Stopped = t.state == domain.SessionStopped
		sdHash = t.artifact.DescriptorHash
	}
	state := t.state
	t.mu.Unlock()

	if sdHash != "" {
		if uerr := t.m.store.Files().UpdateStatus(context.WithoutCancel(ctx), sdHash, state, false); uerr != nil {
			log.Warn("failed to record failed transfer", "sd_hash", sdHash, "error", uerr)
		}
	}
	return err
}

func (t *Transfer) fetchDescriptor(ctx context.Context) (*domain.StreamDescriptor, error) {
	id := t.req.DescriptorID
	data, err := t.m.fetcher.Fetch(ctx, id.PieceID(), t.m.cfg.BlobTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch descriptor %s: %w", id, err)
	}

	sd, err := domain.ParseStreamDescriptor(id, data)
	if err != nil {
		return nil, err
	}
	if sd.StreamType != "" && sd.StreamType != domain.StreamTypeLBRYFile {
		return nil, fmt.Errorf("%w: unsupported stream type %q", domain.ErrDecode, sd.StreamType)
	}
	if err := t.m.store.Streams().Save(ctx, sd); err != nil {
		return nil, fmt.Errorf("failed to save stream: %w", err)
	}
	return sd, nil
}

// prepareFile chooses the output file and records the file row. An
// existing row for the descriptor keeps its file name.
func (t *Transfer) prepareFile(ctx context.Context, sd *domain.StreamDescriptor) (*domain.Artifact, error) {
	files := t.m.store.Files()
	dir := t.m.cfg.DownloadDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	name := ""
	if existing, err := files.Find(ctx, domain.ByDescriptorHash(sd.ID)); err == nil {
		name = existing.FileName
		dir = existing.DownloadDirectory
	} else if !storage.IsNotFound(err) {
		return nil, err
	}
	if name == "" {
		requested := t.req.FileName
		if requested == "" {
			requested = sd.SuggestedFileName
		}
		if requested == "" {
			requested = sd.StreamName
		}
		name = availableName(dir, sanitizeFileName(requested, sd.ID))
	}

	a := &domain.Artifact{
		FileName:          name,
		DownloadDirectory: dir,
		DownloadPath:      filepath.Join(dir, name),
		MimeType:          guessMimeType(name),
		DescriptorHash:    sd.ID,
		StreamHash:        sd.StreamHash,
		StreamName:        sd.StreamName,
		SuggestedFileName: sd.SuggestedFileName,
		Key:               sd.Key,
		PointsPaid:        t.req.PointsPaid.String(),
		TotalBytes:        sd.TotalSize,
		PiecesInStream:    sd.ContentPieceCount(),
		Status:            domain.SessionRunning,
	}
	a.ApplyClaim(t.req.Claim)

	if t.req.Claim != nil {
		if err := t.m.store.Claims().Save(ctx, t.req.Claim); err != nil {
			return nil, err
		}
	}
	if _, err := files.Save(ctx, a); err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.artifact = a
	t.mu.Unlock()
	return a, nil
}

// fetchPieces fetches every content piece with a bounded worker pool and
// writes each at its offset in the output file.
func (t *Transfer) fetchPieces(ctx context.Context, sd *domain.StreamDescriptor, a *domain.Artifact, startTimer *time.Timer) error {
	f, err := os.OpenFile(a.DownloadPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer f.Close()
	if err := f.Truncate(sd.TotalSize); err != nil {
		return fmt.Errorf("failed to size output file: %w", err)
	}

	pieces := sd.ContentPieces()
	offsets := make([]int64, len(pieces))
	var off int64
	for i, p := range pieces {
		offsets[i] = off
		off += p.Length
	}

	var progressMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.m.cfg.Workers)

	for i, p := range pieces {
		g.Go(func() error {
			data, err := t.fetchPiece(gctx, p)
			if err != nil {
				return fmt.Errorf("piece %d (%s): %w", p.Num, p.Hash, err)
			}
			if int64(len(data)) != p.Length {
				return fmt.Errorf("%w: piece %d is %d bytes, descriptor says %d", domain.ErrDecode, p.Num, len(data), p.Length)
			}
			if _, err := f.WriteAt(data, offsets[i]); err != nil {
				return fmt.Errorf("failed to write piece %d: %w", p.Num, err)
			}
			startTimer.Stop()

			progressMu.Lock()
			defer progressMu.Unlock()
			t.mu.Lock()
			a.WrittenBytes += p.Length
			a.PiecesCompleted++
			written, completed := a.WrittenBytes, a.PiecesCompleted
			t.mu.Unlock()
			if err := t.m.store.Files().UpdateProgress(gctx, sd.ID, written, completed); err != nil {
				log.Debug("failed to record progress", "sd_hash", sd.ID, "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return f.Sync()
}

// fetchPiece fetches one piece, retrying failures that another attempt
// could fix.
func (t *Transfer) fetchPiece(ctx context.Context, p domain.PieceInfo) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= t.m.cfg.PieceRetries; attempt++ {
		data, err := t.m.fetcher.Fetch(ctx, p.Hash, t.m.cfg.BlobTimeout)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if ctx.Err() != nil || errors.Is(err, domain.ErrInvalidInput) {
			break
		}

		select {
		case <-ctx.Done():
			return nil, lastErr
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return nil, lastErr
}

// sanitizeFileName strips directory components and characters that are
// unsafe in file names.
func sanitizeFileName(name string, id domain.ContentDescriptorID) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return id.String()[:16]
	}
	return name
}

// availableName returns name, or name with a numeric suffix when a file
// of that name already exists in dir.
func availableName(dir, name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; ; i++ {
		if _, err := os.Stat(filepath.Join(dir, candidate)); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
		candidate = base + "_" + strconv.Itoa(i) + ext
	}
}

func guessMimeType(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
