package p2p

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"blobnet/internal/domain"
	"blobnet/internal/storage/blob"
)

type fakeContact struct {
	id   string
	addr string
	data map[domain.PieceID][]byte
	err  error

	mu    sync.Mutex
	calls int
}

func (c *fakeContact) NodeID() string                 { return c.id }
func (c *fakeContact) Address() string                { return c.addr }
func (c *fakeContact) Ping(ctx context.Context) error { return c.err }

func (c *fakeContact) FetchPiece(ctx context.Context, id domain.PieceID, timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if data, ok := c.data[id]; ok {
		return data, nil
	}
	return nil, domain.ErrNotFound
}

type fakeLookup struct {
	peers []domain.PeerContact
	err   error
	block bool
}

func (l *fakeLookup) FindPeers(ctx context.Context, id domain.PieceID, timeout time.Duration) ([]domain.PeerContact, error) {
	if l.block {
		<-ctx.Done()
		return nil, nil
	}
	return l.peers, l.err
}

func newTestStore(t *testing.T) *blob.LocalStore {
	t.Helper()
	store, err := blob.NewLocalStore(blob.LocalConfig{Path: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFetcher_LocalFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	data := []byte("local piece")
	id := blob.HashBytes(data)
	if err := store.Put(ctx, id, data, nil); err != nil {
		t.Fatal(err)
	}

	peer := &fakeContact{id: "p1", addr: "10.0.0.1:3333"}
	f := NewFetcher(store, &fakeLookup{peers: []domain.PeerContact{peer}}, nil, nil, nil, FetcherConfig{})

	got, err := f.Fetch(ctx, id, time.Second)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Fetch() = %q, want %q", got, data)
	}
	if peer.calls != 0 {
		t.Errorf("peer was asked %d times for a local blob", peer.calls)
	}
}

func TestFetcher_FromPeerStoresHost(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	data := []byte("remote piece")
	id := blob.HashBytes(data)

	failing := &fakeContact{id: "bad", addr: "10.0.0.2:3333", err: domain.ErrTransport}
	good := &fakeContact{id: "good", addr: "10.0.0.3:3333", data: map[domain.PieceID][]byte{id: data}}
	scores := NewScoreboard()
	f := NewFetcher(store, &fakeLookup{peers: []domain.PeerContact{failing, good}}, scores, nil, nil, FetcherConfig{})

	got, err := f.Fetch(ctx, id, time.Second)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Fetch() = %q, want %q", got, data)
	}

	meta, err := store.Metadata(ctx, id)
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if meta.Host != good.addr {
		t.Errorf("stored host = %q, want %q", meta.Host, good.addr)
	}
	if scores.Get("bad").Failures != 1 || scores.Get("good").Successes != 1 {
		t.Errorf("scores not recorded: bad=%+v good=%+v", scores.Get("bad"), scores.Get("good"))
	}
}

func TestFetcher_Errors(t *testing.T) {
	id := blob.HashBytes([]byte("missing"))

	tests := []struct {
		name    string
		lookup  *fakeLookup
		id      domain.PieceID
		timeout time.Duration
		want    error
	}{
		{
			name:   "invalid hash",
			lookup: &fakeLookup{},
			id:     "xyz",
			want:   domain.ErrInvalidInput,
		},
		{
			name:   "no peers",
			lookup: &fakeLookup{},
			id:     id,
			want:   domain.ErrNotFound,
		},
		{
			name:   "all peers fail",
			lookup: &fakeLookup{peers: []domain.PeerContact{&fakeContact{id: "a", err: errors.New("reset")}}},
			id:     id,
			want:   domain.ErrTransport,
		},
		{
			name:    "search outlives timeout",
			lookup:  &fakeLookup{block: true},
			id:      id,
			timeout: 20 * time.Millisecond,
			want:    domain.ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFetcher(newTestStore(t), tt.lookup, nil, nil, nil, FetcherConfig{})
			_, err := f.Fetch(context.Background(), tt.id, tt.timeout)
			if !errors.Is(err, tt.want) {
				t.Errorf("Fetch() error = %v, want %v", err, tt.want)
			}
		})
	}
}

type recordingProvider struct {
	mu  sync.Mutex
	ids []domain.PieceID
}

func (p *recordingProvider) Announce(ctx context.Context, id domain.PieceID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
	return nil
}

func (p *recordingProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}

func TestFetcher_AnnouncesStoredBlob(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	data := []byte("announce me")
	id := blob.HashBytes(data)

	prov := &recordingProvider{}
	ann := NewAnnouncer(prov, store, 0)
	ann.Start(ctx)
	defer ann.Stop()

	peer := &fakeContact{id: "p", addr: "10.0.0.9:3333", data: map[domain.PieceID][]byte{id: data}}
	f := NewFetcher(store, &fakeLookup{peers: []domain.PeerContact{peer}}, nil, ann, nil, FetcherConfig{})
	if _, err := f.Fetch(ctx, id, time.Second); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for prov.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if prov.count() != 1 {
		t.Fatalf("announced %d blobs, want 1", prov.count())
	}
}

func TestFetcher_PeekKeepsNothing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	data := []byte("look, don't keep")
	id := blob.HashBytes(data)

	prov := &recordingProvider{}
	ann := NewAnnouncer(prov, store, 0)
	ann.Start(ctx)

	peer := &fakeContact{id: "p", addr: "10.0.0.9:3333", data: map[domain.PieceID][]byte{id: data}}
	f := NewFetcher(store, &fakeLookup{peers: []domain.PeerContact{peer}}, nil, ann, nil, FetcherConfig{})
	got, err := f.Peek(ctx, id, time.Second)
	if err != nil {
		t.Fatalf("Peek() error = %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Peek() = %q, want %q", got, data)
	}
	ann.Stop()

	if has, _ := store.Has(ctx, id); has {
		t.Error("Peek() stored the blob")
	}
	if prov.count() != 0 {
		t.Errorf("Peek() announced %d blobs, want 0", prov.count())
	}
}

func TestAnnouncer_PeriodicPass(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for _, s := range []string{"one", "two", "three"} {
		data := []byte(s)
		if err := store.Put(ctx, blob.HashBytes(data), data, nil); err != nil {
			t.Fatal(err)
		}
	}

	prov := &recordingProvider{}
	ann := NewAnnouncer(prov, store, time.Hour)
	ann.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for prov.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	ann.Stop()
	if prov.count() != 3 {
		t.Errorf("announced %d blobs on start, want 3", prov.count())
	}
}
