// Package service exposes the retrieval operations of a node: acquiring
// streams, estimating their cost, diagnosing their availability and
// probing peers.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"blobnet/internal/availability"
	"blobnet/internal/config"
	"blobnet/internal/cost"
	"blobnet/internal/domain"
	"blobnet/internal/download"
	"blobnet/internal/logger"
	"blobnet/internal/metrics"
	"blobnet/internal/storage"
	"blobnet/internal/storage/blob"
	"blobnet/internal/transfer"
)

var log = logger.Default()

// SetLogger sets the logger for the service.
func SetLogger(l *logger.Logger) {
	if l != nil {
		log = l.With("component", "service")
	}
}

// ErrShuttingDown is returned by Acquire after Shutdown.
var ErrShuttingDown = errors.New("node is shutting down")

// Pinger pings a peer by node ID.
type Pinger interface {
	PingPeer(ctx context.Context, nodeID string, addrs ...string) error
}

// Deps are the collaborators a Service is built from.
type Deps struct {
	Store     storage.Store
	Blobs     blob.Store
	Lookup    domain.PeerLookup
	Fetcher   domain.BlobFetcher
	Resolver  domain.ClaimResolver
	Converter domain.CurrencyConverter
	Analytics domain.AnalyticsSink
	Metrics   *metrics.Metrics

	// Network and Pinger may be nil for a node without a host.
	Network availability.NetworkState
	Pinger  Pinger
}

// Service implements the node's retrieval operations.
type Service struct {
	cfg  config.RetrievalConfig
	deps Deps

	coordinator *download.Coordinator
	prober      *availability.Prober
	checker     *availability.StreamChecker
	estimator   *cost.Estimator

	shutdown atomic.Bool
}

// New wires a service. downloadDir receives acquired files.
func New(cfg config.RetrievalConfig, downloadDir string, deps Deps) *Service {
	proberCfg := availability.ProberConfig{
		SearchTimeout: cfg.PeerSearchTimeout,
		ProbeTimeout:  cfg.BlobTimeout,
	}
	prober := availability.NewProber(deps.Lookup, proberCfg, deps.Metrics)

	transfers := transfer.NewManager(deps.Fetcher, deps.Store, transfer.Config{
		DownloadDir:  downloadDir,
		Workers:      cfg.Workers,
		PieceRetries: cfg.PieceRetries,
		BlobTimeout:  cfg.BlobTimeout,
		StartTimeout: cfg.DownloadTimeout,
	})

	return &Service{
		cfg:  cfg,
		deps: deps,
		coordinator: download.New(download.NewRegistry(), download.ManagerTransfers{Manager: transfers},
			deps.Store, deps.Blobs, deps.Analytics, deps.Metrics),
		prober:  prober,
		checker: availability.NewStreamChecker(deps.Resolver, deps.Fetcher, prober, deps.Network, proberCfg),
		estimator: cost.New(deps.Resolver, deps.Fetcher, deps.Converter, cost.Config{
			DataRate:      cfg.DataRate,
			Generous:      cfg.PaymentPolicyGenerous,
			SearchTimeout: cfg.SearchTimeout,
		}, deps.Metrics),
	}
}

// Coordinator returns the download coordinator.
func (s *Service) Coordinator() *download.Coordinator {
	return s.coordinator
}

// ApplyConfig updates the settings that can change while running.
func (s *Service) ApplyConfig(cfg config.RetrievalConfig) {
	s.estimator.SetPolicy(cfg.DataRate, cfg.PaymentPolicyGenerous)
	log.Info("retrieval policy updated", "data_rate", cfg.DataRate, "generous", cfg.PaymentPolicyGenerous)
}

// AcquireOptions tune one Acquire call.
type AcquireOptions struct {
	// Timeout bounds the start of the download; zero uses the configured default.
	Timeout time.Duration

	// FileName overrides the stream's suggested file name.
	FileName string
}

// Acquire resolves uri and downloads its stream, returning the local
// file. A file already downloaded for the same descriptor is returned
// without downloading again.
func (s *Service) Acquire(ctx context.Context, uri string, opts AcquireOptions) (*domain.Artifact, error) {
	if s.shutdown.Load() {
		return nil, ErrShuttingDown
	}
	if opts.Timeout <= 0 {
		opts.Timeout = s.cfg.DownloadTimeout
	}

	loc, err := domain.ParseLocator(uri)
	if err != nil {
		return nil, err
	}
	if loc.IsChannel() && loc.Path == "" {
		return nil, fmt.Errorf("%w: cannot download a channel claim, specify a /path", domain.ErrInvalidInput)
	}

	resolved, err := s.resolve(ctx, uri)
	if err != nil {
		return nil, err
	}
	claim, err := domain.DecodeClaim(resolved.Value)
	if err != nil {
		return nil, err
	}
	if !claim.IsStream() {
		return nil, fmt.Errorf("%w: claim for %q does not contain a stream", domain.ErrInvalidInput, uri)
	}
	sdHash := claim.SourceHash()
	if err := sdHash.Validate(); err != nil {
		return nil, fmt.Errorf("%w: claim for %q has a bad source", domain.ErrDecode, uri)
	}

	fee, err := s.checkKeyFee(ctx, claim.SourceFee())
	if err != nil {
		return nil, err
	}

	logger := log.With("uri", uri, "sd_hash", sdHash)
	if _, inFlight := s.coordinator.Registry().Get(sdHash); inFlight {
		logger.Info("already waiting on stream to start downloading")
	} else if a, ok := s.existingFile(ctx, sdHash); ok {
		logger.Info("already have a file for stream", "file", a.DownloadPath)
		return a, nil
	}

	a, err := s.coordinator.Acquire(ctx, sdHash, download.Params{
		Name:       uri,
		Claim:      resolved,
		FileName:   opts.FileName,
		Timeout:    opts.Timeout,
		PointsPaid: fee,
	})
	if errors.Is(err, download.ErrClosed) {
		return nil, ErrShuttingDown
	}
	return a, err
}

func (s *Service) resolve(ctx context.Context, uri string) (*domain.ResolvedClaim, error) {
	results, err := s.deps.Resolver.Resolve(ctx, uri)
	if err != nil {
		return nil, err
	}
	res, ok := results[uri]
	if !ok {
		return nil, fmt.Errorf("%w: failed to resolve stream at %s", domain.ErrNotFound, uri)
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Claim == nil || len(res.Claim.Value) == 0 {
		return nil, fmt.Errorf("%w: failed to resolve stream at %s", domain.ErrNotFound, uri)
	}
	return res.Claim, nil
}

// checkKeyFee converts the declared fee to the canonical currency and
// rejects it when it exceeds the configured maximum.
func (s *Service) checkKeyFee(ctx context.Context, fee *domain.Fee) (decimal.Decimal, error) {
	if fee == nil || fee.Amount.IsZero() {
		return decimal.Zero, nil
	}
	amount, err := s.deps.Converter.Convert(ctx, fee.Amount, fee.Currency, domain.CanonicalCurrency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to convert key fee: %w", err)
	}
	if s.cfg.DisableMaxKeyFee || s.cfg.MaxKeyFee.Currency == "" {
		return amount, nil
	}

	limit, err := s.deps.Converter.Convert(ctx, decimal.NewFromFloat(s.cfg.MaxKeyFee.Amount), s.cfg.MaxKeyFee.Currency, domain.CanonicalCurrency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to convert max key fee: %w", err)
	}
	if amount.GreaterThan(limit) {
		return decimal.Zero, fmt.Errorf("%w: %s %s (%s %s) exceeds %s %s",
			domain.ErrKeyFeeTooHigh, fee.Amount, fee.Currency, amount, domain.CanonicalCurrency,
			limit, domain.CanonicalCurrency)
	}
	return amount, nil
}

// existingFile returns the completed file for sdHash if it is still on
// disk. A missing or partial file is downloaded again.
func (s *Service) existingFile(ctx context.Context, sdHash domain.ContentDescriptorID) (*domain.Artifact, bool) {
	a, err := s.deps.Store.Files().Find(ctx, domain.ByDescriptorHash(sdHash))
	if err != nil {
		if !storage.IsNotFound(err) {
			log.Warn("failed to look up file", "sd_hash", sdHash, "error", err)
		}
		return nil, false
	}
	if _, err := os.Stat(a.DownloadPath); err != nil {
		log.Info("already have file record but file is missing, rebuilding it", "path", a.DownloadPath)
		return nil, false
	}
	if !a.Completed {
		return nil, false
	}
	return a, true
}

// EstimateCost estimates the cost of acquiring uri. With knownSize the
// descriptor is not fetched.
func (s *Service) EstimateCost(ctx context.Context, uri string, knownSize *int64) (cost.Result, error) {
	if knownSize != nil {
		return s.estimator.EstimateUsingKnownSize(ctx, uri, *knownSize)
	}
	return s.estimator.EstimateFromURI(ctx, uri)
}

// CheckAvailability diagnoses whether uri can be downloaded. Zero
// timeouts use the configured defaults.
func (s *Service) CheckAvailability(ctx context.Context, uri string, searchTimeout, blobTimeout time.Duration) domain.StreamAvailability {
	return s.checker.Check(ctx, uri, searchTimeout, blobTimeout)
}

// ProbePeers reports which peers announcing pieceID answer within
// probeTimeout.
func (s *Service) ProbePeers(ctx context.Context, pieceID string, searchTimeout, probeTimeout time.Duration) (domain.AvailabilityReport, error) {
	id, err := domain.ParsePieceID(pieceID)
	if err != nil {
		return domain.AvailabilityReport{}, err
	}
	return s.prober.Probe(ctx, id, searchTimeout, probeTimeout), nil
}

// Shutdown rejects new acquisitions and cancels every download in
// flight. It does not wait for them.
func (s *Service) Shutdown(reason error) {
	if !s.shutdown.CompareAndSwap(false, true) {
		return
	}
	if reason == nil {
		reason = ErrShuttingDown
	}
	log.Info("shutting down retrieval", "reason", reason)
	s.coordinator.CancelAll(reason)
}

// Downloads returns the sessions currently in flight.
func (s *Service) Downloads() []*download.Session {
	return s.coordinator.Registry().Snapshot()
}

// PeerList returns the peers announcing pieceID. A search that runs out
// of time returns the peers found so far.
func (s *Service) PeerList(ctx context.Context, pieceID string, timeout time.Duration) ([]domain.PeerInfo, error) {
	id, err := domain.ParsePieceID(pieceID)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = s.cfg.PeerSearchTimeout
	}

	peers, err := s.deps.Lookup.FindPeers(ctx, id, timeout)
	if err != nil && !domain.IsTimeout(err) {
		return nil, err
	}
	infos := make([]domain.PeerInfo, 0, len(peers))
	for _, p := range peers {
		infos = append(infos, domain.NewPeerInfo(p))
	}
	return infos, nil
}

// Ping results.
const (
	PingOK       = "pong"
	PingNotFound = "peer not found"
	PingTimeout  = "ping timeout"
)

// PingPeer pings nodeID, dialing addr first when given. Unreachable
// peers and timeouts are reported in the result string.
func (s *Service) PingPeer(ctx context.Context, nodeID, addr string) (string, error) {
	if s.deps.Pinger == nil {
		return "", fmt.Errorf("%w: node has no network host", domain.ErrTransport)
	}
	var addrs []string
	if addr != "" {
		addrs = append(addrs, addr)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.BlobTimeout)
	defer cancel()

	err := s.deps.Pinger.PingPeer(ctx, nodeID, addrs...)
	switch {
	case err == nil:
		return PingOK, nil
	case domain.IsTimeout(err):
		return PingTimeout, nil
	case errors.Is(err, domain.ErrInvalidInput):
		return "", err
	default:
		log.Debug("ping failed", "node_id", nodeID, "error", err)
		return PingNotFound, nil
	}
}

// Rate managers accepted by BlobGet.
const (
	RateManagerDefault  = ""
	RateManagerOnlyFree = "only-free"
)

// BlobGetOptions tune BlobGet.
type BlobGetOptions struct {
	// Timeout defaults to 30 seconds.
	Timeout time.Duration

	// Encoding decodes the blob; the only decoder is "json".
	Encoding string

	// RateManager selects the payment policy for the fetch.
	RateManager string
}

// BlobGetResult is either a status message or the decoded blob.
type BlobGetResult struct {
	Message string `json:"message,omitempty"`
	Decoded any    `json:"decoded,omitempty"`
}

// BlobGet fetches a blob from local storage or the network.
func (s *Service) BlobGet(ctx context.Context, blobHash string, opts BlobGetOptions) (BlobGetResult, error) {
	id, err := domain.ParsePieceID(blobHash)
	if err != nil {
		return BlobGetResult{}, err
	}
	switch opts.RateManager {
	case RateManagerDefault, RateManagerOnlyFree:
	default:
		return BlobGetResult{}, fmt.Errorf("%w: unknown rate manager %q", domain.ErrInvalidInput, opts.RateManager)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	data, err := s.deps.Fetcher.Fetch(ctx, id, opts.Timeout)
	if err != nil {
		return BlobGetResult{}, err
	}

	if opts.Encoding == "json" {
		var decoded any
		if err := json.Unmarshal(data, &decoded); err != nil {
			return BlobGetResult{}, fmt.Errorf("%w: blob %s is not json: %v", domain.ErrDecode, id, err)
		}
		return BlobGetResult{Decoded: decoded}, nil
	}
	return BlobGetResult{Message: "Downloaded blob " + id.String()}, nil
}

// BlobDelete removes a held blob. Deleting a descriptor blob also drops
// the stream it describes.
func (s *Service) BlobDelete(ctx context.Context, blobHash string) (string, error) {
	id, err := domain.ParsePieceID(blobHash)
	if err != nil {
		return "", err
	}
	has, err := s.deps.Blobs.Has(ctx, id)
	if err != nil {
		return "", err
	}
	if !has {
		return "Don't have that blob", nil
	}

	sdHash := domain.ContentDescriptorID(id)
	if err := s.deps.Store.Streams().Delete(ctx, sdHash); err != nil && !storage.IsNotFound(err) {
		log.Debug("failed to delete stream for blob", "hash", id, "error", err)
	}
	if err := s.deps.Blobs.Delete(ctx, id); err != nil {
		return "", err
	}
	return "Deleted " + id.String(), nil
}

// FindFile returns the first file matching key.
func (s *Service) FindFile(ctx context.Context, key domain.FileKey) (*domain.Artifact, error) {
	a, err := s.deps.Store.Files().Find(ctx, key)
	if storage.IsNotFound(err) {
		return nil, fmt.Errorf("%w: no file matching %s", domain.ErrNotFound, key)
	}
	return a, err
}

// ListFiles returns every file matching all keys.
func (s *Service) ListFiles(ctx context.Context, keys ...domain.FileKey) ([]*domain.Artifact, error) {
	return s.deps.Store.Files().List(ctx, keys...)
}
