package blob

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"blobnet/internal/domain"
	"blobnet/internal/logger"
)

func newTestStore(t *testing.T, compression CompressionType) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(LocalConfig{
		Path:             t.TempDir(),
		Compression:      compression,
		CompressionLevel: 3,
	}, logger.Nop())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLocalStore_PutGet(t *testing.T) {
	for _, c := range []CompressionType{CompressionNone, CompressionGzip, CompressionZstd} {
		t.Run(string(c), func(t *testing.T) {
			store := newTestStore(t, c)
			ctx := context.Background()

			data := bytes.Repeat([]byte("blob content "), 200)
			id := HashBytes(data)

			if err := store.Put(ctx, id, data, &Metadata{Host: "10.0.0.1:3333"}); err != nil {
				t.Fatalf("failed to put blob: %v", err)
			}

			got, err := store.Get(ctx, id)
			if err != nil {
				t.Fatalf("failed to get blob: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Error("retrieved data does not match")
			}

			meta, err := store.Metadata(ctx, id)
			if err != nil {
				t.Fatalf("failed to get metadata: %v", err)
			}
			if meta.Host != "10.0.0.1:3333" {
				t.Errorf("expected host to be recorded, got %q", meta.Host)
			}
			if meta.Size != int64(len(data)) {
				t.Errorf("expected size %d, got %d", len(data), meta.Size)
			}
			if meta.Compression != c {
				t.Errorf("expected compression %q, got %q", c, meta.Compression)
			}
		})
	}
}

func TestLocalStore_PutHashMismatch(t *testing.T) {
	store := newTestStore(t, CompressionNone)
	id := HashBytes([]byte("one"))

	err := store.Put(context.Background(), id, []byte("two"), nil)
	if !errors.Is(err, ErrHashMismatch) {
		t.Errorf("expected ErrHashMismatch, got %v", err)
	}
}

func TestLocalStore_PutInvalidHash(t *testing.T) {
	store := newTestStore(t, CompressionNone)
	err := store.Put(context.Background(), domain.PieceID("short"), []byte("x"), nil)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLocalStore_PutIdempotent(t *testing.T) {
	store := newTestStore(t, CompressionNone)
	ctx := context.Background()
	data := []byte("same")
	id := HashBytes(data)

	for i := 0; i < 2; i++ {
		if err := store.Put(ctx, id, data, nil); err != nil {
			t.Fatalf("put %d failed: %v", i, err)
		}
	}

	stats, _ := store.Stats(ctx)
	if stats.TotalBlobs != 1 {
		t.Errorf("expected 1 blob, got %d", stats.TotalBlobs)
	}
}

func TestLocalStore_HasDelete(t *testing.T) {
	store := newTestStore(t, CompressionZstd)
	ctx := context.Background()
	data := []byte("ephemeral descriptor")
	id := HashBytes(data)

	has, err := store.Has(ctx, id)
	if err != nil || has {
		t.Fatalf("expected missing blob, got has=%v err=%v", has, err)
	}

	if err := store.Put(ctx, id, data, nil); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if has, _ := store.Has(ctx, id); !has {
		t.Fatal("expected blob to exist")
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if has, _ := store.Has(ctx, id); has {
		t.Error("expected blob to be gone")
	}
	if _, err := store.Get(ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	stats, _ := store.Stats(ctx)
	if stats.TotalBlobs != 0 || stats.TotalSize != 0 {
		t.Errorf("expected empty stats, got %+v", stats)
	}
}

func TestLocalStore_List(t *testing.T) {
	store := newTestStore(t, CompressionNone)
	ctx := context.Background()

	want := map[domain.PieceID]bool{}
	for _, s := range []string{"a", "b", "c"} {
		data := []byte(strings.Repeat(s, 10))
		id := HashBytes(data)
		want[id] = true
		if err := store.Put(ctx, id, data, nil); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}

	blobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(blobs) != 3 {
		t.Fatalf("expected 3 blobs, got %d", len(blobs))
	}
	for _, b := range blobs {
		if !want[b.Hash] {
			t.Errorf("unexpected blob %s", b.Hash)
		}
		if b.Size != 10 {
			t.Errorf("expected size 10, got %d", b.Size)
		}
	}
}

func TestLocalStore_StatsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewLocalStore(LocalConfig{Path: dir}, logger.Nop())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	data := []byte("persisted")
	if err := store.Put(ctx, HashBytes(data), data, nil); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	store.Close()

	reopened, err := NewLocalStore(LocalConfig{Path: dir}, logger.Nop())
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	stats, _ := reopened.Stats(ctx)
	if stats.TotalBlobs != 1 || stats.TotalSize != int64(len(data)) {
		t.Errorf("unexpected stats after reopen: %+v", stats)
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("compress me "), 100)
	for _, c := range []CompressionType{CompressionNone, CompressionGzip, CompressionZstd} {
		t.Run(string(c), func(t *testing.T) {
			enc, err := compress(data, c, 9)
			if err != nil {
				t.Fatalf("compress failed: %v", err)
			}
			dec, err := decompress(enc, c)
			if err != nil {
				t.Fatalf("decompress failed: %v", err)
			}
			if !bytes.Equal(dec, data) {
				t.Error("round trip mismatch")
			}
		})
	}

	if _, err := compress(data, "lz4", 0); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}
