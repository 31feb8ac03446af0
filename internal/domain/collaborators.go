package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PeerLookup finds peers announcing a piece.
type PeerLookup interface {
	// FindPeers returns the peers known to hold id. Expiry of timeout
	// yields an empty result, not an error.
	FindPeers(ctx context.Context, id PieceID, timeout time.Duration) ([]PeerContact, error)
}

// BlobFetcher retrieves a piece from local storage or the network.
type BlobFetcher interface {
	// Fetch fails with ErrTimeout, ErrNotFound or ErrTransport.
	Fetch(ctx context.Context, id PieceID, timeout time.Duration) ([]byte, error)

	// Peek is Fetch without keeping a piece that came from the network.
	Peek(ctx context.Context, id PieceID, timeout time.Duration) ([]byte, error)
}

// ClaimResolver maps locators to on-ledger claims.
type ClaimResolver interface {
	// Resolve returns one result per input locator, keyed by the input
	// string. Per-locator failures are reported in ResolveResult.Err.
	Resolve(ctx context.Context, uris ...string) (map[string]ResolveResult, error)
}

// CurrencyConverter converts between currencies.
type CurrencyConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// AnalyticsSink receives download lifecycle events. Implementations are
// best-effort; callers log and drop their errors.
type AnalyticsSink interface {
	DownloadStarted(ctx context.Context, ev DownloadEvent) error
	DownloadFinished(ctx context.Context, ev DownloadEvent, report DownloadReport) error
	DownloadErrored(ctx context.Context, ev DownloadEvent, cause error, report DownloadReport) error
}

// CanonicalCurrency is the unit all costs are reported in.
const CanonicalCurrency = "LBC"
