// Package pgstore is the pgx/v5 implementation of whitelist.Store.
package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wisbric/blacklistguard/pkg/whitelist"
)

// Store is a pgxpool-backed whitelist.Store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ whitelist.Store = (*Store)(nil)

const entryColumns = `id, ip_address, country, reason, source, is_active, created_at, updated_at`

func scanEntry(row pgx.Row) (whitelist.Entry, error) {
	var e whitelist.Entry
	err := row.Scan(&e.ID, &e.IPAddress, &e.Country, &e.Reason, &e.Source, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// IsActive reports whether ipAddress has an active whitelist membership.
// This is the DB fallback path behind the cache (§4.6).
func (s *Store) IsActive(ctx context.Context, ipAddress string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM whitelist_entries WHERE ip_address = $1 AND is_active)`,
		ipAddress,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking whitelist membership: %w", err)
	}
	return exists, nil
}

// Add inserts or reactivates a whitelist entry for e.IPAddress.
func (s *Store) Add(ctx context.Context, e whitelist.Entry) (whitelist.Entry, error) {
	query := `
		INSERT INTO whitelist_entries (ip_address, country, reason, source, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, now(), now())
		ON CONFLICT (ip_address) DO UPDATE SET
			country    = EXCLUDED.country,
			reason     = EXCLUDED.reason,
			source     = EXCLUDED.source,
			is_active  = true,
			updated_at = now()
		RETURNING ` + entryColumns
	row := s.pool.QueryRow(ctx, query, e.IPAddress, e.Country, e.Reason, e.Source)
	out, err := scanEntry(row)
	if err != nil {
		return whitelist.Entry{}, fmt.Errorf("adding whitelist entry: %w", err)
	}
	return out, nil
}

// Remove deactivates (rather than deletes) a whitelist entry, preserving
// provenance for audit.
func (s *Store) Remove(ctx context.Context, ipAddress string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE whitelist_entries SET is_active = false, updated_at = now() WHERE ip_address = $1 AND is_active`,
		ipAddress,
	)
	if err != nil {
		return fmt.Errorf("removing whitelist entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// List returns active whitelist entries ordered by most-recently-updated.
func (s *Store) List(ctx context.Context, limit, offset int) ([]whitelist.Entry, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM whitelist_entries WHERE is_active`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting whitelist entries: %w", err)
	}

	query := `SELECT ` + entryColumns + ` FROM whitelist_entries WHERE is_active ORDER BY updated_at DESC LIMIT $1 OFFSET $2`
	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing whitelist entries: %w", err)
	}
	defer rows.Close()

	var out []whitelist.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning whitelist entry: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}
