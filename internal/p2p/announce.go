package p2p

import (
	"context"
	"sync"
	"time"

	"blobnet/internal/domain"
	"blobnet/internal/storage/blob"
)

const announceQueueSize = 256

// provider records this node as holding a blob.
type provider interface {
	Announce(ctx context.Context, id domain.PieceID) error
}

// Announcer publishes provider records for held blobs: new blobs as they
// are stored, and every blob in the store once per interval.
type Announcer struct {
	dht      provider
	store    blob.Store
	interval time.Duration

	queue  chan domain.PieceID
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAnnouncer creates an announcer. A non-positive interval disables
// periodic re-announcement.
func NewAnnouncer(dht provider, store blob.Store, interval time.Duration) *Announcer {
	return &Announcer{
		dht:      dht,
		store:    store,
		interval: interval,
		queue:    make(chan domain.PieceID, announceQueueSize),
	}
}

// Start launches the background loop.
func (a *Announcer) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.wg.Add(1)
	go a.run(ctx)
}

// Stop ends the loop and waits for it.
func (a *Announcer) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

// Notify queues id for announcement. It never blocks; when the queue is
// full the blob waits for the next periodic pass.
func (a *Announcer) Notify(id domain.PieceID) {
	select {
	case a.queue <- id:
	default:
	}
}

func (a *Announcer) run(ctx context.Context) {
	defer a.wg.Done()

	var tick <-chan time.Time
	if a.interval > 0 {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		tick = ticker.C
		a.announceAll(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case id := <-a.queue:
			a.announce(ctx, id)
		case <-tick:
			a.announceAll(ctx)
		}
	}
}

func (a *Announcer) announceAll(ctx context.Context) {
	blobs, err := a.store.List(ctx)
	if err != nil {
		getLogger("announce").Warn("failed to list blobs", "error", err)
		return
	}
	for _, b := range blobs {
		if ctx.Err() != nil {
			return
		}
		a.announce(ctx, b.Hash)
	}
	getLogger("announce").Debug("announced held blobs", "count", len(blobs))
}

func (a *Announcer) announce(ctx context.Context, id domain.PieceID) {
	if err := a.dht.Announce(ctx, id); err != nil && ctx.Err() == nil {
		getLogger("announce").Debug("failed to announce blob", "blob", id, "error", err)
	}
}
