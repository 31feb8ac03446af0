package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"blobnet/internal/domain"
)

// Messages recorded in StreamAvailability.Error when a stage short-circuits.
const (
	ErrMsgResolveFailed = "Failed to resolve name"
	ErrMsgInvalidURI    = "Invalid URI"
	ErrMsgDecodeFailed  = "Failed to decode claim value"
)

// NetworkState reports the port-mapping state of the local node.
type NetworkState interface {
	UseUPnP() bool
	UPnPRedirectIsSet() bool
}

// StreamChecker runs the staged availability diagnosis for a locator.
type StreamChecker struct {
	resolver domain.ClaimResolver
	fetcher  domain.BlobFetcher
	prober   *Prober
	network  NetworkState
	cfg      ProberConfig
}

// NewStreamChecker creates a checker. network may be nil when the node
// has no host; the UPnP fields then stay false.
func NewStreamChecker(resolver domain.ClaimResolver, fetcher domain.BlobFetcher, prober *Prober, network NetworkState, cfg ProberConfig) *StreamChecker {
	return &StreamChecker{
		resolver: resolver,
		fetcher:  fetcher,
		prober:   prober,
		network:  network,
		cfg:      cfg,
	}
}

// Check resolves uri, decodes its claim, fetches the stream descriptor
// and probes the descriptor and first content piece. Every failure is
// reported in the result; Check never returns an error.
func (c *StreamChecker) Check(ctx context.Context, uri string, searchTimeout, blobTimeout time.Duration) domain.StreamAvailability {
	if searchTimeout <= 0 {
		searchTimeout = c.cfg.SearchTimeout
	}
	if blobTimeout <= 0 {
		blobTimeout = c.cfg.ProbeTimeout
	}
	logger := getLogger("stream").With("uri", uri)

	var result domain.StreamAvailability
	if c.network != nil {
		result.UseUPnP = c.network.UseUPnP()
		result.UPnPRedirectIsSet = c.network.UPnPRedirectIsSet()
	}

	claim, msg := c.resolve(ctx, uri)
	if msg != "" {
		result.Error = msg
		logger.Debug("stream check stopped", "stage", "resolve", "error", msg)
		return result
	}
	result.DidResolve = true

	decoded, err := domain.DecodeClaim(claim.Value)
	if err != nil {
		result.Error = ErrMsgDecodeFailed
		logger.Debug("stream check stopped", "stage", "decode", "error", err)
		return result
	}
	result.DidDecode = true

	result.IsStream = decoded.IsStream()
	if !result.IsStream {
		result.Error = fmt.Sprintf("Claim for %q does not contain a stream", uri)
		return result
	}

	sdHash := decoded.SourceHash()
	result.DescriptorHash = sdHash.String()

	head, err := c.fetchDescriptor(ctx, sdHash, blobTimeout, &result)
	if err != nil {
		result.Error = err.Error()
		logger.Debug("descriptor unavailable", "sd_hash", sdHash, "error", err)
	}

	sdReport := c.prober.Probe(ctx, sdHash.PieceID(), searchTimeout, blobTimeout)
	result.DescriptorAvailability = &sdReport

	if head != "" {
		result.HeadPieceHash = head.String()
		headReport := c.prober.Probe(ctx, head, searchTimeout, blobTimeout)
		result.HeadPieceAvailability = &headReport
	}

	result.IsAvailable = sdReport.IsAvailable &&
		result.HeadPieceAvailability != nil && result.HeadPieceAvailability.IsAvailable
	return result
}

// resolve returns the claim for uri, or the message explaining why
// there is none.
func (c *StreamChecker) resolve(ctx context.Context, uri string) (*domain.ResolvedClaim, string) {
	if _, err := domain.ParseLocator(uri); err != nil {
		return nil, ErrMsgInvalidURI
	}

	results, err := c.resolver.Resolve(ctx, uri)
	if err != nil {
		return nil, resolveMessage(err)
	}
	res, ok := results[uri]
	if !ok {
		return nil, ErrMsgResolveFailed
	}
	if res.Err != nil {
		return nil, resolveMessage(res.Err)
	}
	if res.Claim == nil {
		return nil, ErrMsgResolveFailed
	}
	return res.Claim, ""
}

func resolveMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrMsgResolveFailed
	case errors.Is(err, domain.ErrInvalidInput):
		return ErrMsgInvalidURI
	}
	return err.Error()
}

// fetchDescriptor reads the descriptor, records its piece count and
// returns the head piece. A descriptor not held locally is read from
// peers without being stored.
func (c *StreamChecker) fetchDescriptor(ctx context.Context, sdHash domain.ContentDescriptorID, timeout time.Duration, result *domain.StreamAvailability) (domain.PieceID, error) {
	data, err := c.fetcher.Peek(ctx, sdHash.PieceID(), timeout)
	if err != nil {
		return "", err
	}

	sd, err := domain.ParseStreamDescriptor(sdHash, data)
	if err != nil {
		return "", err
	}
	count := sd.ContentPieceCount()
	result.NumPiecesInStream = &count

	head, _ := sd.HeadPiece()
	return head, nil
}
