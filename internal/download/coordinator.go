// Package download coordinates stream downloads. Concurrent requests for
// the same descriptor share one transfer and one outcome.
package download

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"blobnet/internal/domain"
	"blobnet/internal/logger"
	"blobnet/internal/metrics"
	"blobnet/internal/storage"
	"blobnet/internal/storage/blob"
	"blobnet/internal/transfer"
)

var log = logger.Default()

// SetLogger sets the logger for the download coordinator.
func SetLogger(l *logger.Logger) {
	if l != nil {
		log = l.With("component", "download")
	}
}

// ErrShutdown is the default reason passed to CancelAll.
var ErrShutdown = errors.New("download coordinator shutting down")

// Transfer is the work behind one session.
type Transfer interface {
	Run(ctx context.Context) (*domain.Artifact, error)
	State() domain.SessionState
	Stop(reason error)
}

// Transfers starts transfers.
type Transfers interface {
	Start(req transfer.Request) Transfer
}

// ManagerTransfers adapts a transfer.Manager.
type ManagerTransfers struct {
	*transfer.Manager
}

// Start returns a new transfer for req.
func (m ManagerTransfers) Start(req transfer.Request) Transfer {
	return m.New(req)
}

// Params describes one acquisition.
type Params struct {
	// Name is the locator the download was requested through.
	Name string

	// Claim is the resolved claim; may be nil.
	Claim *domain.ResolvedClaim

	// FileName overrides the suggested file name.
	FileName string

	// Timeout bounds the time until the first piece is written.
	Timeout time.Duration

	PointsPaid decimal.Decimal
}

// Coordinator runs at most one session per descriptor.
type Coordinator struct {
	registry  *Registry
	transfers Transfers
	store     storage.Store
	blobs     blob.Store
	analytics domain.AnalyticsSink
	metrics   *metrics.Metrics
}

// New creates a coordinator. registry is owned by the caller.
func New(registry *Registry, transfers Transfers, store storage.Store, blobs blob.Store, sink domain.AnalyticsSink, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		registry:  registry,
		transfers: transfers,
		store:     store,
		blobs:     blobs,
		analytics: sink,
		metrics:   m,
	}
}

// Registry returns the session registry.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Acquire downloads the stream under id, or waits for the download
// already in flight. Callers attached to the same session receive the
// same artifact or error. ctx only bounds this caller's wait.
func (c *Coordinator) Acquire(ctx context.Context, id domain.ContentDescriptorID, p Params) (*domain.Artifact, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	s, created, err := c.registry.LoadOrCreate(id, func() *Session {
		return newSession(id, context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	if created {
		go c.run(s, p)
	} else {
		log.Debug("attaching to in-flight download", "sd_hash", id, "download_id", s.DownloadID)
	}
	return s.Wait(ctx)
}

// run drives one session to its outcome. The session is unregistered
// before waiters are released, whatever happens.
func (c *Coordinator) run(s *Session, p Params) {
	var (
		a   *domain.Artifact
		err error
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("download panicked: %v", r)
			log.Error("download panicked", "sd_hash", s.ID, "panic", r)
		}
		c.registry.Remove(s.ID, s)
		s.resolve(a, err)
	}()

	ctx := s.ctx
	logger := log.With("sd_hash", s.ID, "download_id", s.DownloadID)
	ev := domain.DownloadEvent{
		DownloadID:     s.DownloadID,
		Name:           p.Name,
		DescriptorHash: s.ID,
	}
	if p.Claim != nil {
		ev.ClaimID = p.Claim.ClaimID
	}

	c.bestEffort(logger, "started", c.analytics.DownloadStarted(ctx, ev))

	tr := c.transfers.Start(transfer.Request{
		DescriptorID: s.ID,
		Claim:        p.Claim,
		FileName:     p.FileName,
		Timeout:      p.Timeout,
		PointsPaid:   p.PointsPaid,
	})
	s.attach(tr)

	a, err = tr.Run(ctx)
	if err != nil && s.canceled() {
		logger.Info("download canceled", "reason", context.Cause(ctx))
		c.metrics.DownloadErrored("canceled")
		return
	}

	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	report := c.report(reportCtx, s.ID)

	if err != nil {
		if domain.IsTimeout(err) {
			logger.Warn("download timed out", "name", p.Name, "error", err)
		} else {
			logger.Error("download failed", "name", p.Name, "error", err)
		}
		c.bestEffort(logger, "errored", c.analytics.DownloadErrored(reportCtx, ev, err, report))
		if tr.State() != domain.SessionRunning {
			tr.Stop(err)
		}
		return
	}

	logger.Info("download finished", "name", p.Name, "file", a.DownloadPath)
	c.bestEffort(logger, "finished", c.analytics.DownloadFinished(reportCtx, ev, report))
}

// report assembles download diagnostics. Lookups that fail leave their
// fields at the unknown defaults.
func (c *Coordinator) report(ctx context.Context, id domain.ContentDescriptorID) domain.DownloadReport {
	r := domain.DownloadReport{DescriptorHash: id, DescriptorHost: domain.UnknownHost}

	if hash, err := c.store.Streams().StreamHashForDescriptor(ctx, id); err == nil {
		r.StreamHash = hash
		if pieces, err := c.store.Streams().Pieces(ctx, hash); err == nil {
			r.KnownPieces = len(pieces)
		}
	}
	if c.blobs != nil {
		if meta, err := c.blobs.Metadata(ctx, id.PieceID()); err == nil && meta.Host != "" {
			r.DescriptorHost = meta.Host
		}
	}
	return r
}

func (c *Coordinator) bestEffort(logger *logger.Logger, event string, err error) {
	if err != nil {
		logger.Warn("failed to record download event", "event", event, "error", err)
	}
}

// CancelAll closes the registry and stops every registered session with
// reason. Later Acquire calls fail with ErrClosed. It does not wait for
// the sessions to settle.
func (c *Coordinator) CancelAll(reason error) {
	if reason == nil {
		reason = ErrShutdown
	}
	sessions := c.registry.Close()
	for _, s := range sessions {
		s.stop(reason)
	}
	if len(sessions) > 0 {
		log.Info("canceled downloads", "count", len(sessions), "reason", reason)
	}
}
