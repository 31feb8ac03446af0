package download

import (
	"context"
	"errors"
	"sync"
	"testing"

	"blobnet/internal/domain"
	"blobnet/test/testutil/fixtures"
)

func TestRegistry_LoadOrCreate(t *testing.T) {
	r := NewRegistry()
	id := fixtures.NewStream(t, "a").DescriptorID

	first, created, err := r.LoadOrCreate(id, func() *Session { return newSession(id, context.Background()) })
	if err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}
	if !created {
		t.Fatal("first LoadOrCreate did not create")
	}
	second, created, _ := r.LoadOrCreate(id, func() *Session {
		t.Error("create called for registered id")
		return nil
	})
	if created || second != first {
		t.Error("second LoadOrCreate did not return the registered session")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_ConcurrentLoadOrCreate(t *testing.T) {
	r := NewRegistry()
	id := fixtures.NewStream(t, "a").DescriptorID

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		creates int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.LoadOrCreate(id, func() *Session {
				mu.Lock()
				creates++
				mu.Unlock()
				return newSession(id, context.Background())
			})
		}()
	}
	wg.Wait()

	if creates != 1 {
		t.Errorf("create called %d times, want 1", creates)
	}
}

func TestRegistry_RemoveOnlyExactSession(t *testing.T) {
	r := NewRegistry()
	id := fixtures.NewStream(t, "a").DescriptorID

	old, _, _ := r.LoadOrCreate(id, func() *Session { return newSession(id, context.Background()) })
	if !r.Remove(id, old) {
		t.Fatal("Remove() = false for registered session")
	}
	if r.Remove(id, old) {
		t.Error("second Remove() = true")
	}

	current, _, _ := r.LoadOrCreate(id, func() *Session { return newSession(id, context.Background()) })
	if r.Remove(id, old) {
		t.Error("Remove() of a stale session removed the current one")
	}
	if got, ok := r.Get(id); !ok || got != current {
		t.Error("current session missing after stale Remove")
	}
}

func TestRegistry_Snapshot(t *testing.T) {
	r := NewRegistry()
	var ids []domain.ContentDescriptorID
	for _, name := range []string{"a", "b", "c"} {
		id := fixtures.NewStream(t, name).DescriptorID
		ids = append(ids, id)
		r.LoadOrCreate(id, func() *Session { return newSession(id, context.Background()) })
	}

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot() has %d sessions, want 3", len(snap))
	}
	for i, s := range snap {
		if s.ID != ids[i] {
			t.Errorf("Snapshot()[%d] = %s, want %s", i, s.ID, ids[i])
		}
	}
}

func TestRegistry_Close(t *testing.T) {
	r := NewRegistry()
	a := fixtures.NewStream(t, "a").DescriptorID
	b := fixtures.NewStream(t, "b").DescriptorID

	held, _, _ := r.LoadOrCreate(a, func() *Session { return newSession(a, context.Background()) })

	sessions := r.Close()
	if len(sessions) != 1 || sessions[0] != held {
		t.Fatalf("Close() = %v, want the registered session", sessions)
	}

	if _, _, err := r.LoadOrCreate(b, func() *Session {
		t.Error("create called after Close")
		return nil
	}); !errors.Is(err, ErrClosed) {
		t.Errorf("LoadOrCreate() after Close error = %v, want ErrClosed", err)
	}
	if got, created, err := r.LoadOrCreate(a, nil); err != nil || created || got != held {
		t.Errorf("LoadOrCreate() of a registered id after Close = %v, %v, %v", got, created, err)
	}
}
