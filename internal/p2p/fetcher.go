package p2p

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"blobnet/internal/domain"
	"blobnet/internal/metrics"
	"blobnet/internal/storage/blob"
)

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	// PeerSearchTimeout bounds the provider lookup inside one fetch.
	PeerSearchTimeout time.Duration

	// Rate limits outbound peer requests per second; zero disables it.
	Rate  float64
	Burst int
}

// Fetcher retrieves blobs from the local store, falling back to peers
// found through lookup. Blobs fetched from the network are stored with
// the address of the peer that served them. It implements
// domain.BlobFetcher.
type Fetcher struct {
	store     blob.Store
	lookup    domain.PeerLookup
	scores    *Scoreboard
	limiter   *rate.Limiter
	announcer *Announcer
	metrics   *metrics.Metrics
	cfg       FetcherConfig
}

var _ domain.BlobFetcher = (*Fetcher)(nil)

// NewFetcher creates a fetcher. announcer and m may be nil.
func NewFetcher(store blob.Store, lookup domain.PeerLookup, scores *Scoreboard, announcer *Announcer, m *metrics.Metrics, cfg FetcherConfig) *Fetcher {
	if scores == nil {
		scores = NewScoreboard()
	}
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Fetcher{
		store:     store,
		lookup:    lookup,
		scores:    scores,
		limiter:   rate.NewLimiter(limit, burst),
		announcer: announcer,
		metrics:   m,
		cfg:       cfg,
	}
}

// Fetch returns the content of id. timeout bounds the whole fetch,
// including the peer search.
func (f *Fetcher) Fetch(ctx context.Context, id domain.PieceID, timeout time.Duration) ([]byte, error) {
	return f.fetch(ctx, id, timeout, true)
}

// Peek returns the content of id like Fetch, but a blob served by a
// peer is neither stored nor announced.
func (f *Fetcher) Peek(ctx context.Context, id domain.PieceID, timeout time.Duration) ([]byte, error) {
	return f.fetch(ctx, id, timeout, false)
}

func (f *Fetcher) fetch(ctx context.Context, id domain.PieceID, timeout time.Duration, keep bool) ([]byte, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	if ok, err := f.store.Has(ctx, id); err == nil && ok {
		data, err := f.store.Get(ctx, id)
		f.metrics.BlobFetched("local", len(data), err)
		if err == nil {
			return data, nil
		}
		getLogger("fetcher").Warn("failed to read local blob, fetching from peers", "blob", id, "error", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	data, err := f.fetchRemote(ctx, id, keep)
	f.metrics.BlobFetched("network", len(data), err)
	return data, err
}

func (f *Fetcher) fetchRemote(ctx context.Context, id domain.PieceID, keep bool) ([]byte, error) {
	logger := getLogger("fetcher")

	searchTimeout := f.cfg.PeerSearchTimeout
	peers, err := f.lookup.FindPeers(ctx, id, searchTimeout)
	if err != nil {
		return nil, timeoutOr(ctx, err)
	}
	if len(peers) == 0 {
		if ctx.Err() != nil {
			return nil, timeoutOr(ctx, ctx.Err())
		}
		return nil, fmt.Errorf("%w: no peers hold blob %s", domain.ErrNotFound, id)
	}

	var errs []error
	for _, p := range f.scores.Rank(peers) {
		if err := f.limiter.Wait(ctx); err != nil {
			errs = append(errs, err)
			break
		}

		start := time.Now()
		data, err := p.FetchPiece(ctx, id, 0)
		if err != nil {
			f.scores.RecordFailure(p.NodeID())
			logger.Debug("peer failed to serve blob", "blob", id, "peer", p.NodeID(), "error", err)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		f.scores.RecordSuccess(p.NodeID(), time.Since(start))
		if !keep {
			return data, nil
		}

		if err := f.store.Put(ctx, id, data, &blob.Metadata{Host: p.Address()}); err != nil {
			logger.Warn("failed to store fetched blob", "blob", id, "error", err)
		} else if f.announcer != nil {
			f.announcer.Notify(id)
		}
		return data, nil
	}

	if ctx.Err() != nil {
		return nil, timeoutOr(ctx, ctx.Err())
	}
	return nil, fmt.Errorf("%w: blob %s: %d peers failed: %w", domain.ErrTransport, id, len(peers), errors.Join(errs...))
}

// timeoutOr maps an expired context to domain.ErrTimeout and returns
// err otherwise.
func timeoutOr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return err
}
