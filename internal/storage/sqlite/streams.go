package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"blobnet/internal/domain"
	"blobnet/internal/storage"
)

// StreamRepository implements storage.StreamRepository for SQLite.
type StreamRepository struct {
	store *Store
}

// Save records a descriptor and its piece list, terminator included.
func (r *StreamRepository) Save(ctx context.Context, sd *domain.StreamDescriptor) error {
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO streams (stream_hash, sd_hash, stream_type, stream_name, suggested_file_name, stream_key, total_bytes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(stream_hash) DO NOTHING
		`,
			sd.StreamHash,
			sd.ID.String(),
			sd.StreamType,
			sd.StreamName,
			sd.SuggestedFileName,
			sd.Key,
			sd.TotalSize,
			nowString(),
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		for _, p := range sd.Pieces {
			var blobHash any
			if p.Hash != "" {
				blobHash = p.Hash.String()
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO stream_blobs (stream_hash, position, blob_hash, iv, length)
				VALUES (?, ?, ?, ?, ?)
			`, sd.StreamHash, p.Num, blobHash, p.IV, p.Length); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save stream %s: %w", sd.StreamHash, err)
	}
	return nil
}

// StreamHashForDescriptor returns the stream hash declared by a descriptor.
func (r *StreamRepository) StreamHashForDescriptor(ctx context.Context, id domain.ContentDescriptorID) (string, error) {
	rows, err := r.store.query(ctx, "streams", `SELECT stream_hash FROM streams WHERE sd_hash = ?`, id.String())
	if err != nil {
		return "", fmt.Errorf("failed to query stream: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return "", storage.ErrNotFound
	}
	var h string
	if err := rows.Scan(&h); err != nil {
		return "", fmt.Errorf("failed to scan stream: %w", err)
	}
	return h, nil
}

// Pieces returns the content pieces of a stream in order.
func (r *StreamRepository) Pieces(ctx context.Context, streamHash string) ([]domain.PieceInfo, error) {
	pieces, err := r.allPieces(ctx, streamHash)
	if err != nil {
		return nil, err
	}
	content := pieces[:0]
	for _, p := range pieces {
		if !p.IsTerminator() {
			content = append(content, p)
		}
	}
	return content, nil
}

func (r *StreamRepository) allPieces(ctx context.Context, streamHash string) ([]domain.PieceInfo, error) {
	rows, err := r.store.query(ctx, "stream_blobs", `
		SELECT position, blob_hash, iv, length
		FROM stream_blobs WHERE stream_hash = ?
		ORDER BY position
	`, streamHash)
	if err != nil {
		return nil, fmt.Errorf("failed to query stream blobs: %w", err)
	}
	defer rows.Close()

	var pieces []domain.PieceInfo
	for rows.Next() {
		var (
			p        domain.PieceInfo
			blobHash sql.NullString
		)
		if err := rows.Scan(&p.Num, &blobHash, &p.IV, &p.Length); err != nil {
			return nil, fmt.Errorf("failed to scan stream blob: %w", err)
		}
		p.Hash = domain.PieceID(blobHash.String)
		pieces = append(pieces, p)
	}
	return pieces, rows.Err()
}

// Get rebuilds the descriptor for a stream hash.
func (r *StreamRepository) Get(ctx context.Context, streamHash string) (*domain.StreamDescriptor, error) {
	if err := r.store.checkOpen(); err != nil {
		return nil, err
	}
	sd := &domain.StreamDescriptor{StreamHash: streamHash}
	var sdHash string

	err := r.store.db.QueryRowContext(ctx, `
		SELECT sd_hash, stream_type, stream_name, suggested_file_name, stream_key, total_bytes
		FROM streams WHERE stream_hash = ?
	`, streamHash).Scan(&sdHash, &sd.StreamType, &sd.StreamName, &sd.SuggestedFileName, &sd.Key, &sd.TotalSize)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query stream: %w", err)
	}
	sd.ID = domain.ContentDescriptorID(sdHash)

	sd.Pieces, err = r.allPieces(ctx, streamHash)
	if err != nil {
		return nil, err
	}
	return sd, nil
}

// Delete removes the stream, its pieces and its file row.
func (r *StreamRepository) Delete(ctx context.Context, id domain.ContentDescriptorID) error {
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE sd_hash = ?`, id.String()); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM streams WHERE sd_hash = ?`, id.String())
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to delete stream %s: %w", id, err)
	}
	return err
}
