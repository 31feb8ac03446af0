// Package fakes provides in-memory collaborators for retrieval tests.
package fakes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"blobnet/internal/domain"
	"blobnet/internal/storage/blob"
)

// Peer is a scripted domain.PeerContact.
type Peer struct {
	ID   string
	Addr string

	// Blobs are served by FetchPiece.
	Blobs map[domain.PieceID][]byte

	// Err, when set, is returned by every call.
	Err error

	// Delay is applied before answering; a delay longer than the
	// caller's timeout makes the peer time out.
	Delay time.Duration

	mu      sync.Mutex
	fetches int
}

func (p *Peer) NodeID() string  { return p.ID }
func (p *Peer) Address() string { return p.Addr }

func (p *Peer) Ping(ctx context.Context) error {
	if err := p.wait(ctx); err != nil {
		return err
	}
	return p.Err
}

func (p *Peer) FetchPiece(ctx context.Context, id domain.PieceID, timeout time.Duration) ([]byte, error) {
	p.mu.Lock()
	p.fetches++
	p.mu.Unlock()

	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	data, ok := p.Blobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return data, nil
}

// Fetches returns how many times FetchPiece was called.
func (p *Peer) Fetches() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches
}

func (p *Peer) wait(ctx context.Context) error {
	if p.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(p.Delay):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err())
	}
}

// Lookup is a scripted domain.PeerLookup.
type Lookup struct {
	mu    sync.Mutex
	peers map[domain.PieceID][]domain.PeerContact

	// Err, when set, is returned by FindPeers.
	Err error

	// Block makes FindPeers wait for its deadline and return nothing.
	Block bool
}

// NewLookup creates an empty lookup.
func NewLookup() *Lookup {
	return &Lookup{peers: make(map[domain.PieceID][]domain.PeerContact)}
}

// Add registers peers as holders of id.
func (l *Lookup) Add(id domain.PieceID, peers ...domain.PeerContact) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.peers[id] = append(l.peers[id], peers...)
}

func (l *Lookup) FindPeers(ctx context.Context, id domain.PieceID, timeout time.Duration) ([]domain.PeerContact, error) {
	if l.Block {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		<-ctx.Done()
		return nil, nil
	}
	if l.Err != nil {
		return nil, l.Err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.PeerContact(nil), l.peers[id]...), nil
}

// Fetcher is a domain.BlobFetcher over a map that stores what it
// returns, like the network fetcher does.
type Fetcher struct {
	Store blob.Store

	mu    sync.Mutex
	blobs map[domain.PieceID][]byte
	errs  map[domain.PieceID]error
	calls map[domain.PieceID]int
	delay time.Duration
}

// NewFetcher creates a fetcher that stores into store.
func NewFetcher(store blob.Store) *Fetcher {
	return &Fetcher{
		Store: store,
		blobs: make(map[domain.PieceID][]byte),
		errs:  make(map[domain.PieceID]error),
		calls: make(map[domain.PieceID]int),
	}
}

// AddBlobs makes blobs fetchable.
func (f *Fetcher) AddBlobs(blobs map[domain.PieceID][]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, data := range blobs {
		f.blobs[id] = data
	}
}

// Fail makes fetches of id return err.
func (f *Fetcher) Fail(id domain.PieceID, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[id] = err
}

// SetDelay delays every fetch.
func (f *Fetcher) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// Calls returns how many times id was fetched.
func (f *Fetcher) Calls(id domain.PieceID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *Fetcher) Fetch(ctx context.Context, id domain.PieceID, timeout time.Duration) ([]byte, error) {
	return f.fetch(ctx, id, timeout, true)
}

// Peek fetches like Fetch but never writes to Store.
func (f *Fetcher) Peek(ctx context.Context, id domain.PieceID, timeout time.Duration) ([]byte, error) {
	return f.fetch(ctx, id, timeout, false)
}

func (f *Fetcher) fetch(ctx context.Context, id domain.PieceID, timeout time.Duration, keep bool) ([]byte, error) {
	f.mu.Lock()
	f.calls[id]++
	data, ok := f.blobs[id]
	err := f.errs[id]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: blob %s", domain.ErrTimeout, id)
		}
	}
	if err != nil {
		return nil, err
	}
	if f.Store != nil {
		if has, _ := f.Store.Has(ctx, id); has {
			return f.Store.Get(ctx, id)
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", domain.ErrNotFound, id)
	}
	if keep && f.Store != nil {
		if err := f.Store.Put(ctx, id, data, &blob.Metadata{Host: "10.0.0.1:3333"}); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// Resolver is a domain.ClaimResolver over a fixed set of claims.
type Resolver struct {
	mu     sync.Mutex
	claims map[string]*domain.ResolvedClaim
	calls  int

	// Err, when set, is returned by Resolve.
	Err error

	// Gate, when set, makes Resolve wait until it is closed.
	Gate chan struct{}
}

// NewResolver creates a resolver answering for uri -> claim.
func NewResolver() *Resolver {
	return &Resolver{claims: make(map[string]*domain.ResolvedClaim)}
}

// Add registers claim under uri.
func (r *Resolver) Add(uri string, claim *domain.ResolvedClaim) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims[uri] = claim
}

// Calls returns how many times Resolve was called.
func (r *Resolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *Resolver) Resolve(ctx context.Context, uris ...string) (map[string]domain.ResolveResult, error) {
	r.mu.Lock()
	r.calls++
	gate := r.Gate
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	out := make(map[string]domain.ResolveResult, len(uris))
	for _, uri := range uris {
		if _, err := domain.ParseLocator(uri); err != nil {
			out[uri] = domain.ResolveResult{Err: err}
			continue
		}
		claim, ok := r.claims[uri]
		if !ok {
			out[uri] = domain.ResolveResult{Err: fmt.Errorf("%w: %s", domain.ErrNotFound, uri)}
			continue
		}
		out[uri] = domain.ResolveResult{Claim: claim}
	}
	return out, nil
}

// Converter converts with fixed rates into LBC.
type Converter struct {
	Rates map[string]decimal.Decimal
	Err   error
}

func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if c.Err != nil {
		return decimal.Zero, c.Err
	}
	if from == to {
		return amount, nil
	}
	rate, ok := c.Rates[from]
	if !ok || to != domain.CanonicalCurrency {
		return decimal.Zero, fmt.Errorf("%w: no rate %s->%s", domain.ErrInvalidInput, from, to)
	}
	return amount.Mul(rate), nil
}

// Event is one recorded analytics call.
type Event struct {
	Kind   string
	Event  domain.DownloadEvent
	Report domain.DownloadReport
	Err    error
}

// Analytics records analytics events.
type Analytics struct {
	mu     sync.Mutex
	events []Event

	// Err, when set, is returned by every call after recording.
	Err error
}

func (a *Analytics) record(e Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return a.Err
}

// Events returns the recorded events of kind, or all events if kind is empty.
func (a *Analytics) Events(kind string) []Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []Event
	for _, e := range a.events {
		if kind == "" || e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (a *Analytics) DownloadStarted(ctx context.Context, ev domain.DownloadEvent) error {
	return a.record(Event{Kind: "started", Event: ev})
}

func (a *Analytics) DownloadFinished(ctx context.Context, ev domain.DownloadEvent, report domain.DownloadReport) error {
	return a.record(Event{Kind: "finished", Event: ev, Report: report})
}

func (a *Analytics) DownloadErrored(ctx context.Context, ev domain.DownloadEvent, cause error, report domain.DownloadReport) error {
	return a.record(Event{Kind: "errored", Event: ev, Report: report, Err: cause})
}
