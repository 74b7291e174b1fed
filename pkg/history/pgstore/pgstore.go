// Package pgstore is the pgx/v5 implementation of history.Store.
package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wisbric/blacklistguard/pkg/history"
)

// Store is a pgxpool-backed history.Store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ history.Store = (*Store)(nil)

const runColumns = `id, service_name, started_at, finished_at, success, items_collected, duration_ms, error_message, details`

func scanRun(row pgx.Row) (history.Run, error) {
	var r history.Run
	err := row.Scan(&r.ID, &r.ServiceName, &r.StartedAt, &r.FinishedAt, &r.Success,
		&r.ItemsCollected, &r.DurationMS, &r.ErrorMessage, &r.Details)
	return r, err
}

// Record appends one row, exactly once per scheduler tick or manual trigger (P10).
func (s *Store) Record(ctx context.Context, r history.Run) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO collection_history
			(service_name, started_at, finished_at, success, items_collected, duration_ms, error_message, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ServiceName, r.StartedAt, r.FinishedAt, r.Success, r.ItemsCollected, r.DurationMS, r.ErrorMessage, r.Details)
	if err != nil {
		return fmt.Errorf("recording collection history: %w", err)
	}
	return nil
}

// Recent returns the most recent runs for serviceName, newest first.
func (s *Store) Recent(ctx context.Context, serviceName string, limit int) ([]history.Run, error) {
	query := `SELECT ` + runColumns + ` FROM collection_history WHERE service_name = $1 ORDER BY started_at DESC LIMIT $2`
	rows, err := s.pool.Query(ctx, query, serviceName, limit)
	if err != nil {
		return nil, fmt.Errorf("listing collection history: %w", err)
	}
	defer rows.Close()

	var out []history.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning collection history row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LastSuccess returns the most recent successful run, or nil if there has
// never been one.
func (s *Store) LastSuccess(ctx context.Context, serviceName string) (*history.Run, error) {
	query := `SELECT ` + runColumns + ` FROM collection_history WHERE service_name = $1 AND success ORDER BY started_at DESC LIMIT 1`
	r, err := scanRun(s.pool.QueryRow(ctx, query, serviceName))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("getting last successful run: %w", err)
	}
	return &r, nil
}
