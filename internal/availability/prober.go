package availability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"blobnet/internal/domain"
	"blobnet/internal/metrics"
)

// ProberConfig holds the timeouts used when a caller passes zero.
type ProberConfig struct {
	SearchTimeout time.Duration
	ProbeTimeout  time.Duration
}

// Prober asks every peer announcing a piece for that piece and reports
// which of them answered.
type Prober struct {
	lookup  domain.PeerLookup
	cfg     ProberConfig
	metrics *metrics.Metrics
}

// NewProber creates a prober. m may be nil.
func NewProber(lookup domain.PeerLookup, cfg ProberConfig, m *metrics.Metrics) *Prober {
	return &Prober{lookup: lookup, cfg: cfg, metrics: m}
}

type attempt struct {
	peer      string
	reachable bool
	err       error
}

// Probe looks up the peers holding id and fetches it from each of them
// concurrently. It returns once every attempt has settled.
func (p *Prober) Probe(ctx context.Context, id domain.PieceID, searchTimeout, probeTimeout time.Duration) domain.AvailabilityReport {
	if searchTimeout <= 0 {
		searchTimeout = p.cfg.SearchTimeout
	}
	if probeTimeout <= 0 {
		probeTimeout = p.cfg.ProbeTimeout
	}
	logger := getLogger("prober")
	start := time.Now()

	peers, err := p.findPeers(ctx, id, searchTimeout)
	if err != nil {
		logger.Debug("peer lookup failed", "blob", id, "error", err)
		return domain.NewAvailabilityReport(nil, fmt.Sprintf("failed to get peers for blob: %v", err))
	}

	attempts := make([]attempt, len(peers))
	var wg sync.WaitGroup
	for i, peer := range peers {
		wg.Add(1)
		go func(i int, peer domain.PeerContact) {
			defer wg.Done()
			attempts[i] = probeOne(ctx, peer, id, probeTimeout)
		}(i, peer)
	}
	wg.Wait()

	results := make([]domain.PeerProbeResult, 0, len(attempts))
	var firstErr error
	for _, a := range attempts {
		results = append(results, domain.PeerProbeResult{Peer: a.peer, Reachable: a.reachable})
		if a.err != nil && firstErr == nil {
			firstErr = a.err
		}
	}

	var errMsg string
	if firstErr != nil {
		errMsg = firstErr.Error()
	}
	report := domain.NewAvailabilityReport(results, errMsg)

	p.metrics.ObserveProbe(time.Since(start), len(report.ReachablePeers), len(report.UnreachablePeers))
	logger.Debug("probe finished",
		"blob", id,
		"candidates", len(peers),
		"reachable", len(report.ReachablePeers),
		"duration", time.Since(start),
	)
	return report
}

// findPeers runs the lookup under searchTimeout. An expired search is
// an empty candidate list.
func (p *Prober) findPeers(ctx context.Context, id domain.PieceID, timeout time.Duration) ([]domain.PeerContact, error) {
	searchCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	peers, err := p.lookup.FindPeers(searchCtx, id, timeout)
	if err != nil {
		if domain.IsTimeout(err) && ctx.Err() == nil {
			return nil, nil
		}
		return nil, err
	}
	return peers, nil
}

// probeOne fetches id from one peer. Only transport failures are
// reported in err; timeouts and misses just make the peer unreachable.
func probeOne(ctx context.Context, peer domain.PeerContact, id domain.PieceID, timeout time.Duration) attempt {
	a := attempt{peer: peer.Address()}

	probeCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	data, err := peer.FetchPiece(probeCtx, id, timeout)
	switch {
	case err == nil:
		a.reachable = len(data) > 0
	case domain.IsTimeout(err), errors.Is(err, context.Canceled), errors.Is(err, domain.ErrNotFound):
	default:
		a.err = err
	}
	return a
}
