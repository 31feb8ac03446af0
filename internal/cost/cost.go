// Package cost estimates the price of acquiring a stream: a data cost
// proportional to its size plus the publisher's key fee.
package cost

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"blobnet/internal/domain"
	"blobnet/internal/logger"
	"blobnet/internal/metrics"
)

var log = logger.Default()

// SetLogger sets the logger for cost estimation.
func SetLogger(l *logger.Logger) {
	if l != nil {
		log = l.With("component", "cost")
	}
}

var bytesPerMB = decimal.NewFromInt(1_000_000)

// Config holds the pricing policy.
type Config struct {
	// DataRate is the price in LBC per megabyte.
	DataRate float64

	// Generous disables data cost entirely.
	Generous bool

	// SearchTimeout bounds descriptor retrieval when the caller passes zero.
	SearchTimeout time.Duration
}

// Result is the outcome of estimating the cost of a locator. Found is
// false when the locator did not resolve to a stream, which is distinct
// from a zero cost.
type Result struct {
	Found    bool                `json:"found"`
	Estimate domain.CostEstimate `json:"estimate"`
}

// Estimator computes cost estimates.
type Estimator struct {
	resolver  domain.ClaimResolver
	fetcher   domain.BlobFetcher
	converter domain.CurrencyConverter
	metrics   *metrics.Metrics

	mu            sync.RWMutex
	dataRate      decimal.Decimal
	generous      bool
	searchTimeout time.Duration
}

// New creates an estimator. m may be nil.
func New(resolver domain.ClaimResolver, fetcher domain.BlobFetcher, converter domain.CurrencyConverter, cfg Config, m *metrics.Metrics) *Estimator {
	e := &Estimator{
		resolver:      resolver,
		fetcher:       fetcher,
		converter:     converter,
		metrics:       m,
		searchTimeout: cfg.SearchTimeout,
	}
	e.SetPolicy(cfg.DataRate, cfg.Generous)
	return e
}

// SetPolicy replaces the data rate and generosity; it is safe to call
// while estimates run.
func (e *Estimator) SetPolicy(dataRate float64, generous bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dataRate = decimal.NewFromFloat(dataRate)
	e.generous = generous
}

// EstimateFromSize returns the data cost of size bytes.
func (e *Estimator) EstimateFromSize(size int64) decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.generous {
		return decimal.Zero
	}
	return decimal.NewFromInt(size).Div(bytesPerMB).Mul(e.dataRate)
}

// EstimateFromDescriptorHash fetches the stream descriptor and prices
// its total size. A descriptor that cannot be retrieved prices the data
// at zero; only a malformed hash or a canceled context is an error.
func (e *Estimator) EstimateFromDescriptorHash(ctx context.Context, sdHash domain.ContentDescriptorID, searchTimeout time.Duration) (decimal.Decimal, error) {
	r := e.dataCostStep(ctx, sdHash, searchTimeout)
	if r.err != nil {
		return decimal.Zero, r.err
	}
	return r.value, nil
}

// AddKeyFee converts fee into LBC and adds it to dataCost. A nil fee
// adds nothing.
func (e *Estimator) AddKeyFee(ctx context.Context, fee *domain.Fee, dataCost decimal.Decimal) (domain.CostEstimate, error) {
	if fee == nil {
		return domain.NewCostEstimate(dataCost, decimal.Zero), nil
	}
	feeCost, err := e.converter.Convert(ctx, fee.Amount, fee.Currency, domain.CanonicalCurrency)
	if err != nil {
		return domain.CostEstimate{}, fmt.Errorf("failed to convert key fee %s %s: %w", fee.Amount, fee.Currency, err)
	}
	return domain.NewCostEstimate(dataCost, feeCost), nil
}

// EstimateFromClaim prices a decoded stream claim. Descriptor retrieval
// and fee conversion failures degrade to zero for that component and
// are logged.
func (e *Estimator) EstimateFromClaim(ctx context.Context, claim *domain.Claim, uri string) (domain.CostEstimate, error) {
	if !claim.IsStream() {
		return domain.CostEstimate{}, fmt.Errorf("%w: claim for %q does not contain a stream", domain.ErrInvalidInput, uri)
	}

	data := e.dataCostStep(ctx, claim.SourceHash(), 0)
	if data.err != nil {
		return domain.CostEstimate{}, data.err
	}

	fee := e.feeStep(ctx, claim.SourceFee(), data.value, uri)
	if fee.err != nil {
		return domain.CostEstimate{}, fee.err
	}

	est := fee.estimate
	est.DataCostUnknown = data.degraded
	return est, nil
}

// EstimateFromURI resolves uri and prices its stream, fetching the
// descriptor to learn the size.
func (e *Estimator) EstimateFromURI(ctx context.Context, uri string) (Result, error) {
	claim, err := e.resolveStep(ctx, uri)
	if err != nil {
		return Result{}, err
	}
	if claim == nil {
		e.metrics.CostEstimated("unresolved")
		return Result{}, nil
	}

	est, err := e.EstimateFromClaim(ctx, claim, uri)
	if err != nil {
		return Result{}, err
	}
	e.record(est)
	return Result{Found: true, Estimate: est.Rounded()}, nil
}

// EstimateUsingKnownSize resolves uri and prices size bytes plus its
// key fee without fetching the descriptor.
func (e *Estimator) EstimateUsingKnownSize(ctx context.Context, uri string, size int64) (Result, error) {
	if size < 0 {
		return Result{}, fmt.Errorf("%w: negative size %d", domain.ErrInvalidInput, size)
	}
	dataCost := e.EstimateFromSize(size)

	claim, err := e.resolveStep(ctx, uri)
	if err != nil {
		return Result{}, err
	}
	if claim == nil {
		e.metrics.CostEstimated("unresolved")
		return Result{}, nil
	}

	fee := e.feeStep(ctx, claim.SourceFee(), dataCost, uri)
	if fee.err != nil {
		return Result{}, fee.err
	}
	e.record(fee.estimate)
	return Result{Found: true, Estimate: fee.estimate.Rounded()}, nil
}

func (e *Estimator) record(est domain.CostEstimate) {
	if est.DataCostUnknown {
		e.metrics.CostEstimated("degraded")
		return
	}
	e.metrics.CostEstimated("ok")
}

// stepResult is the outcome of one pipeline step. degraded marks a
// value that was substituted for a failed lookup.
type stepResult struct {
	value    decimal.Decimal
	degraded bool
	err      error
}

type feeResult struct {
	estimate domain.CostEstimate
	err      error
}

// resolveStep returns the decoded stream claim for uri, or nil when
// uri does not resolve to a stream.
func (e *Estimator) resolveStep(ctx context.Context, uri string) (*domain.Claim, error) {
	if _, err := domain.ParseLocator(uri); err != nil {
		return nil, err
	}

	results, err := e.resolver.Resolve(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", uri, err)
	}

	res, ok := results[uri]
	switch {
	case !ok, errors.Is(res.Err, domain.ErrNotFound):
		return nil, nil
	case res.Err != nil:
		return nil, res.Err
	case res.Claim == nil || len(res.Claim.Value) == 0:
		log.Warn("failed to estimate cost", "uri", uri, "reason", "claim has no value")
		return nil, nil
	}

	claim, err := domain.DecodeClaim(res.Claim.Value)
	if err != nil {
		return nil, err
	}
	if !claim.IsStream() {
		return nil, nil
	}
	return claim, nil
}

func (e *Estimator) dataCostStep(ctx context.Context, sdHash domain.ContentDescriptorID, searchTimeout time.Duration) stepResult {
	if err := sdHash.Validate(); err != nil {
		return stepResult{err: err}
	}
	if searchTimeout <= 0 {
		e.mu.RLock()
		searchTimeout = e.searchTimeout
		e.mu.RUnlock()
	}

	data, err := e.fetcher.Fetch(ctx, sdHash.PieceID(), searchTimeout)
	if err == nil {
		var sd *domain.StreamDescriptor
		if sd, err = domain.ParseStreamDescriptor(sdHash, data); err == nil {
			return stepResult{value: e.EstimateFromSize(sd.TotalSize)}
		}
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return stepResult{err: ctx.Err()}
	}
	log.Warn("descriptor unavailable for cost estimate, using only key fee", "sd_hash", sdHash, "error", err)
	return stepResult{value: decimal.Zero, degraded: true}
}

func (e *Estimator) feeStep(ctx context.Context, fee *domain.Fee, dataCost decimal.Decimal, uri string) feeResult {
	est, err := e.AddKeyFee(ctx, fee, dataCost)
	if err == nil {
		return feeResult{estimate: est}
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return feeResult{err: ctx.Err()}
	}
	log.Warn("key fee conversion unavailable, using only data cost", "uri", uri, "error", err)
	return feeResult{estimate: domain.NewCostEstimate(dataCost, decimal.Zero)}
}
