// Package pgstore is the pgx/v5 implementation of pulllog.Store.
package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wisbric/blacklistguard/pkg/pulllog"
)

// Store is a pgxpool-backed pulllog.Store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ pulllog.Store = (*Store)(nil)

// Record appends one pull-audit row. Logging failures are the caller's
// concern to swallow — an audit-trail outage must never block a pull
// response (this method itself just reports the error up).
func (s *Store) Record(ctx context.Context, e pulllog.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pull_logs (device_ip, user_agent, request_path, ip_count, response_time_ms, response_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, e.DeviceIP, e.UserAgent, e.RequestPath, e.IPCount, e.ResponseTimeMS, e.ResponseStatus)
	if err != nil {
		return fmt.Errorf("recording pull log: %w", err)
	}
	return nil
}

const entryColumns = `id, device_ip, user_agent, request_path, ip_count, response_time_ms, response_status, created_at`

// Recent returns the most recent pull_logs rows matching requestPath,
// newest first. An empty requestPath matches every path.
func (s *Store) Recent(ctx context.Context, requestPath string, limit int) ([]pulllog.Entry, error) {
	var rows pgx.Rows
	var err error
	if requestPath == "" {
		rows, err = s.pool.Query(ctx,
			`SELECT `+entryColumns+` FROM pull_logs ORDER BY created_at DESC LIMIT $1`, limit)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+entryColumns+` FROM pull_logs WHERE request_path = $1 ORDER BY created_at DESC LIMIT $2`,
			requestPath, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("listing pull logs: %w", err)
	}
	defer rows.Close()

	var out []pulllog.Entry
	for rows.Next() {
		var e pulllog.Entry
		if err := rows.Scan(&e.ID, &e.DeviceIP, &e.UserAgent, &e.RequestPath, &e.IPCount,
			&e.ResponseTimeMS, &e.ResponseStatus, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning pull log row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
