package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"blobnet/internal/domain"
	"blobnet/internal/storage"
)

// ClaimRepository implements storage.ClaimRepository for SQLite.
type ClaimRepository struct {
	store *Store
}

const claimColumns = `claim_outpoint, claim_id, claim_name, txid, nout, height, amount, channel_claim_id, channel_name, value`

// Save upserts claims keyed by outpoint.
func (r *ClaimRepository) Save(ctx context.Context, claims ...*domain.ResolvedClaim) error {
	if len(claims) == 0 {
		return nil
	}
	now := nowString()

	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		for _, c := range claims {
			if c == nil {
				continue
			}
			var sdHash string
			if decoded, err := domain.DecodeClaim(c.Value); err == nil {
				sdHash = decoded.SourceHash().String()
			}

			_, err := tx.ExecContext(ctx, `
				INSERT INTO claims (`+claimColumns+`, sd_hash, resolved_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(claim_outpoint) DO UPDATE SET
					claim_id = excluded.claim_id,
					claim_name = excluded.claim_name,
					height = excluded.height,
					amount = excluded.amount,
					channel_claim_id = excluded.channel_claim_id,
					channel_name = excluded.channel_name,
					value = excluded.value,
					sd_hash = excluded.sd_hash,
					resolved_at = excluded.resolved_at
			`,
				c.Outpoint(),
				c.ClaimID,
				c.Name,
				c.TxID,
				c.Nout,
				c.Height,
				c.Amount.String(),
				c.ChannelClaimID,
				c.ChannelName,
				c.Value,
				sdHash,
				now,
			)
			if err != nil {
				return fmt.Errorf("claim %s: %w", c.Outpoint(), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save claims: %w", err)
	}
	return nil
}

// Get returns a claim by outpoint.
func (r *ClaimRepository) Get(ctx context.Context, outpoint string) (*domain.ResolvedClaim, error) {
	return r.one(ctx, `SELECT `+claimColumns+` FROM claims WHERE claim_outpoint = ?`, outpoint)
}

// ForDescriptor returns the most recently resolved claim pointing at id.
func (r *ClaimRepository) ForDescriptor(ctx context.Context, id domain.ContentDescriptorID) (*domain.ResolvedClaim, error) {
	return r.one(ctx, `
		SELECT `+claimColumns+` FROM claims WHERE sd_hash = ?
		ORDER BY resolved_at DESC, height DESC LIMIT 1
	`, id.String())
}

func (r *ClaimRepository) one(ctx context.Context, query string, args ...any) (*domain.ResolvedClaim, error) {
	rows, err := r.store.query(ctx, "claims", query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query claim: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, storage.ErrNotFound
	}
	return scanClaim(rows)
}

func scanClaim(rows *sql.Rows) (*domain.ResolvedClaim, error) {
	var (
		c        domain.ResolvedClaim
		outpoint string
		amount   string
	)
	err := rows.Scan(&outpoint, &c.ClaimID, &c.Name, &c.TxID, &c.Nout, &c.Height,
		&amount, &c.ChannelClaimID, &c.ChannelName, &c.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to scan claim: %w", err)
	}
	c.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("claim %s has invalid amount %q: %w", outpoint, amount, err)
	}
	return &c, nil
}
