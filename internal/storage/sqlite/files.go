package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"blobnet/internal/domain"
	"blobnet/internal/storage"
)

// FileRepository implements storage.FileRepository for SQLite.
type FileRepository struct {
	store *Store
}

const fileSelect = `
	SELECT f.rowid, f.sd_hash, f.stream_hash, f.file_name, f.download_directory, f.mime_type,
		f.status, f.completed, f.points_paid, f.written_bytes, f.blobs_completed, f.claim_outpoint,
		COALESCE(s.stream_name, ''), COALESCE(s.suggested_file_name, ''), COALESCE(s.stream_key, ''),
		COALESCE(s.total_bytes, 0),
		(SELECT COUNT(*) FROM stream_blobs b WHERE b.stream_hash = f.stream_hash AND b.blob_hash IS NOT NULL),
		COALESCE(c.claim_id, ''), COALESCE(c.claim_name, ''), COALESCE(c.txid, ''), COALESCE(c.nout, 0),
		COALESCE(c.channel_claim_id, ''), COALESCE(c.channel_name, '')
	FROM files f
	LEFT JOIN streams s ON s.stream_hash = f.stream_hash
	LEFT JOIN claims c ON c.claim_outpoint = f.claim_outpoint
`

// fileKeyColumns maps each key kind to the column it filters on.
var fileKeyColumns = map[domain.FileKeyKind]string{
	domain.FileKeyDescriptorHash: "f.sd_hash",
	domain.FileKeyFileName:       "f.file_name",
	domain.FileKeyStreamHash:     "f.stream_hash",
	domain.FileKeyRowID:          "f.rowid",
	domain.FileKeyClaimID:        "c.claim_id",
	domain.FileKeyOutpoint:       "f.claim_outpoint",
	domain.FileKeyTxID:           "c.txid",
	domain.FileKeyNout:           "c.nout",
	domain.FileKeyChannelClaimID: "c.channel_claim_id",
	domain.FileKeyChannelName:    "c.channel_name",
	domain.FileKeyClaimName:      "c.claim_name",
}

// Save inserts or replaces the file row for the artifact's descriptor.
func (r *FileRepository) Save(ctx context.Context, a *domain.Artifact) (int64, error) {
	now := nowString()
	status := a.Status
	if status == "" {
		status = domain.SessionInitializing
	}
	pointsPaid := a.PointsPaid
	if pointsPaid == "" {
		pointsPaid = "0"
	}

	_, err := r.store.exec(ctx, "files", `
		INSERT INTO files (sd_hash, stream_hash, file_name, download_directory, mime_type, status,
			completed, points_paid, written_bytes, blobs_completed, claim_outpoint, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sd_hash) DO UPDATE SET
			stream_hash = excluded.stream_hash,
			file_name = excluded.file_name,
			download_directory = excluded.download_directory,
			mime_type = excluded.mime_type,
			status = excluded.status,
			completed = excluded.completed,
			points_paid = excluded.points_paid,
			written_bytes = excluded.written_bytes,
			blobs_completed = excluded.blobs_completed,
			claim_outpoint = excluded.claim_outpoint,
			updated_at = excluded.updated_at
	`,
		a.DescriptorHash.String(),
		a.StreamHash,
		a.FileName,
		a.DownloadDirectory,
		a.MimeType,
		status.String(),
		boolToInt(a.Completed),
		pointsPaid,
		a.WrittenBytes,
		a.PiecesCompleted,
		a.Outpoint,
		now,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save file: %w", err)
	}

	var rowID int64
	if err := r.store.db.QueryRowContext(ctx, `SELECT rowid FROM files WHERE sd_hash = ?`,
		a.DescriptorHash.String()).Scan(&rowID); err != nil {
		return 0, fmt.Errorf("failed to read file rowid: %w", err)
	}
	a.RowID = rowID
	return rowID, nil
}

// Find returns the first file matching key.
func (r *FileRepository) Find(ctx context.Context, key domain.FileKey) (*domain.Artifact, error) {
	files, err := r.list(ctx, 1, key)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, storage.ErrNotFound
	}
	return files[0], nil
}

// List returns every file matching all keys, oldest first.
func (r *FileRepository) List(ctx context.Context, keys ...domain.FileKey) ([]*domain.Artifact, error) {
	return r.list(ctx, 0, keys...)
}

func (r *FileRepository) list(ctx context.Context, limit int, keys ...domain.FileKey) ([]*domain.Artifact, error) {
	var (
		where []string
		args  []any
	)
	for _, k := range keys {
		if k.IsZero() {
			continue
		}
		col, ok := fileKeyColumns[k.Kind()]
		if !ok {
			return nil, fmt.Errorf("%w: unknown file key %q", domain.ErrInvalidInput, k.Kind())
		}
		where = append(where, col+" = ?")
		args = append(args, k.Value())
		if k.Kind() == domain.FileKeyNout {
			where = append(where, "c.claim_id IS NOT NULL")
		}
	}

	query := fileSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY f.rowid"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.store.query(ctx, "files", query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var files []*domain.Artifact
	for rows.Next() {
		a, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, a)
	}
	return files, rows.Err()
}

// UpdateStatus records a new session state for the file.
func (r *FileRepository) UpdateStatus(ctx context.Context, id domain.ContentDescriptorID, status domain.SessionState, completed bool) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: session state %q", domain.ErrInvalidInput, status)
	}
	return r.update(ctx, id, `status = ?, completed = ?`, status.String(), boolToInt(completed))
}

// UpdateProgress records bytes and pieces written so far.
func (r *FileRepository) UpdateProgress(ctx context.Context, id domain.ContentDescriptorID, writtenBytes int64, piecesCompleted int) error {
	return r.update(ctx, id, `written_bytes = ?, blobs_completed = ?`, writtenBytes, piecesCompleted)
}

func (r *FileRepository) update(ctx context.Context, id domain.ContentDescriptorID, set string, args ...any) error {
	args = append(args, nowString(), id.String())
	res, err := r.store.exec(ctx, "files", `UPDATE files SET `+set+`, updated_at = ? WHERE sd_hash = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update file %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete removes the file row.
func (r *FileRepository) Delete(ctx context.Context, id domain.ContentDescriptorID) error {
	res, err := r.store.exec(ctx, "files", `DELETE FROM files WHERE sd_hash = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete file %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanFile(rows *sql.Rows) (*domain.Artifact, error) {
	var (
		a         domain.Artifact
		sdHash    string
		status    string
		completed int
	)
	err := rows.Scan(
		&a.RowID, &sdHash, &a.StreamHash, &a.FileName, &a.DownloadDirectory, &a.MimeType,
		&status, &completed, &a.PointsPaid, &a.WrittenBytes, &a.PiecesCompleted, &a.Outpoint,
		&a.StreamName, &a.SuggestedFileName, &a.Key,
		&a.TotalBytes,
		&a.PiecesInStream,
		&a.ClaimID, &a.ClaimName, &a.TxID, &a.Nout,
		&a.ChannelClaimID, &a.ChannelName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan file: %w", err)
	}

	a.DescriptorHash = domain.ContentDescriptorID(sdHash)
	a.Status = domain.SessionState(status)
	a.Completed = completed != 0
	a.Stopped = a.Status == domain.SessionStopped
	if a.FileName != "" {
		a.DownloadPath = filepath.Join(a.DownloadDirectory, a.FileName)
	}
	return &a, nil
}
