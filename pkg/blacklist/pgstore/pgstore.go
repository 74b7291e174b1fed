// Package pgstore is the pgx/v5 implementation of blacklist.Store, grounded
// on the batch UPSERT in the original collector's database layer.
package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wisbric/blacklistguard/pkg/blacklist"
)

// BatchSize caps how many rows go into a single multi-row INSERT within the
// UPSERT transaction (§4.5, source CollectorConfig.BATCH_SIZE).
const BatchSize = 2000

// Store is a pgxpool-backed blacklist.Store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ blacklist.Store = (*Store)(nil)

const blockedIPColumns = `ip_address, source, reason, country, confidence,
	detection_count, first_seen, last_seen, is_active, detection_date,
	removal_date, raw_data, created_at, updated_at`

// Upsert merges rows into blocked_ips within a single transaction, tuned the
// way the source tunes its bulk-load session (§4.5): larger work_mem and
// maintenance_work_mem for the sort/index work, and synchronous_commit
// disabled since a crash mid-batch only costs a re-collection, not data
// loss (the source of truth is the upstream feed, not this table).
func (s *Store) Upsert(ctx context.Context, rows []blacklist.BlockedIP) (blacklist.UpsertResult, error) {
	if len(rows) == 0 {
		return blacklist.UpsertResult{}, nil
	}

	existing, err := s.existingIPs(ctx, ipAddresses(rows))
	if err != nil {
		return blacklist.UpsertResult{}, fmt.Errorf("checking existing ips: %w", err)
	}

	result := blacklist.UpsertResult{Total: len(rows)}
	for _, r := range rows {
		if existing[existingKey(r.IPAddress, r.Source)] {
			result.Updated++
		} else {
			result.New++
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return blacklist.UpsertResult{}, fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range []string{
		"SET LOCAL work_mem = '256MB'",
		"SET LOCAL maintenance_work_mem = '256MB'",
		"SET LOCAL synchronous_commit = off",
	} {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return blacklist.UpsertResult{}, fmt.Errorf("tuning upsert session: %w", err)
		}
	}

	for start := 0; start < len(rows); start += BatchSize {
		end := start + BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := upsertChunk(ctx, tx, rows[start:end]); err != nil {
			return blacklist.UpsertResult{}, fmt.Errorf("upserting chunk [%d:%d): %w", start, end, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return blacklist.UpsertResult{}, fmt.Errorf("committing upsert transaction: %w", err)
	}

	return result, nil
}

// upsertChunk executes one multi-row INSERT ... ON CONFLICT for up to
// BatchSize rows. The conflict clause is the exact merge semantics of the
// source's _fallback_batch_insert: detection_count increments, removal_date
// and country prefer the incoming non-null value but fall back to the
// existing one, and is_active is forced false the instant a removal_date
// (new or existing) falls in the past, regardless of what the caller asked for.
func upsertChunk(ctx context.Context, tx pgx.Tx, rows []blacklist.BlockedIP) error {
	now := time.Now().UTC()

	query := `
		INSERT INTO blocked_ips
			(ip_address, source, reason, country, confidence,
			 detection_count, first_seen, last_seen, is_active,
			 detection_date, removal_date, raw_data, created_at, updated_at)
		SELECT * FROM unnest(
			$1::text[], $2::text[], $3::text[], $4::text[], $5::int[],
			$6::int[], $7::timestamptz[], $8::timestamptz[], $9::bool[],
			$10::date[], $11::date[], $12::jsonb[], $13::timestamptz[], $14::timestamptz[]
		)
		ON CONFLICT (ip_address, source) DO UPDATE SET
			detection_count = blocked_ips.detection_count + 1,
			last_seen        = EXCLUDED.last_seen,
			updated_at       = EXCLUDED.updated_at,
			reason           = EXCLUDED.reason,
			removal_date     = COALESCE(EXCLUDED.removal_date, blocked_ips.removal_date),
			is_active        = CASE
				WHEN COALESCE(EXCLUDED.removal_date, blocked_ips.removal_date) < CURRENT_DATE THEN false
				ELSE EXCLUDED.is_active
			END,
			country          = COALESCE(EXCLUDED.country, blocked_ips.country),
			raw_data         = EXCLUDED.raw_data
	`

	ipAddrs := make([]string, len(rows))
	sources := make([]string, len(rows))
	reasons := make([]string, len(rows))
	countries := make([]*string, len(rows))
	confidences := make([]int32, len(rows))
	detectionCounts := make([]int32, len(rows))
	firstSeens := make([]time.Time, len(rows))
	lastSeens := make([]time.Time, len(rows))
	isActives := make([]bool, len(rows))
	detectionDates := make([]*time.Time, len(rows))
	removalDates := make([]*time.Time, len(rows))
	rawData := make([][]byte, len(rows))
	createdAts := make([]time.Time, len(rows))
	updatedAts := make([]time.Time, len(rows))

	for i, r := range rows {
		ipAddrs[i] = r.IPAddress
		sources[i] = r.Source
		reasons[i] = r.Reason
		countries[i] = r.Country
		confidences[i] = int32(r.Confidence)
		detectionCounts[i] = 1
		firstSeens[i] = now
		lastSeens[i] = now
		isActives[i] = r.IsActive
		detectionDates[i] = r.DetectionDate
		removalDates[i] = r.RemovalDate
		if len(r.RawPayload) > 0 {
			rawData[i] = r.RawPayload
		} else {
			rawData[i] = []byte(`{}`)
		}
		createdAts[i] = now
		updatedAts[i] = now
	}

	_, err := tx.Exec(ctx, query,
		ipAddrs, sources, reasons, countries, confidences,
		detectionCounts, firstSeens, lastSeens, isActives,
		detectionDates, removalDates, rawData, createdAts, updatedAts,
	)
	return err
}

func ipAddresses(rows []blacklist.BlockedIP) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.IPAddress
	}
	return out
}

// existingKey is the map key existingIPs reports an (ip_address, source) pair under.
func existingKey(ip, source string) string { return ip + "\x00" + source }

// existingIPs reports which (ip_address, source) pairs for ips are already
// present, keyed by existingKey, batched per §4.5's large-IN-clause optimization.
func (s *Store) existingIPs(ctx context.Context, ips []string) (map[string]bool, error) {
	const checkBatchSize = 1000
	found := make(map[string]bool, len(ips))

	for start := 0; start < len(ips); start += checkBatchSize {
		end := start + checkBatchSize
		if end > len(ips) {
			end = len(ips)
		}
		batch := ips[start:end]

		rows, err := s.pool.Query(ctx,
			`SELECT DISTINCT ip_address, source FROM blocked_ips WHERE ip_address = ANY($1)`, batch)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var ip, source string
			if err := rows.Scan(&ip, &source); err != nil {
				rows.Close()
				return nil, err
			}
			found[existingKey(ip, source)] = true
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		rows.Close()
	}

	return found, nil
}

func scanBlockedIP(row pgx.Row) (blacklist.BlockedIP, error) {
	var b blacklist.BlockedIP
	err := row.Scan(
		&b.IPAddress, &b.Source, &b.Reason, &b.Country, &b.Confidence,
		&b.DetectionCount, &b.FirstSeen, &b.LastSeen, &b.IsActive,
		&b.DetectionDate, &b.RemovalDate, &b.RawPayload, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

// Get returns the most recently updated row for ipAddress across sources, or
// nil if it isn't known. is_active is read through blocked_ips_active so a
// stale stored flag never surfaces (§9 is_active authority decision).
func (s *Store) Get(ctx context.Context, ipAddress string) (*blacklist.BlockedIP, error) {
	query := `SELECT ` + blockedIPColumns + ` FROM blocked_ips_active WHERE ip_address = $1 ORDER BY updated_at DESC LIMIT 1`
	b, err := scanBlockedIP(s.pool.QueryRow(ctx, query, ipAddress))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("getting blocked ip: %w", err)
	}
	return &b, nil
}

// ListActive returns active rows ordered by last_seen descending, with the
// total count of active rows for pagination. Reads go through
// blocked_ips_active, never the raw is_active column.
func (s *Store) ListActive(ctx context.Context, limit, offset int) ([]blacklist.BlockedIP, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM blocked_ips_active WHERE is_active`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting active ips: %w", err)
	}

	query := `SELECT ` + blockedIPColumns + ` FROM blocked_ips_active WHERE is_active ORDER BY last_seen DESC LIMIT $1 OFFSET $2`
	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing active ips: %w", err)
	}
	defer rows.Close()

	var out []blacklist.BlockedIP
	for rows.Next() {
		b, err := scanBlockedIP(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning active ip row: %w", err)
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

// ListActiveExcludingWhitelist is ListActive with whitelisted IPs removed via
// a NOT EXISTS anti-join against whitelist_entries, so the views built on top
// of this (active-blacklist text/enhanced/fortigate) never see a whitelisted
// IP in the first place (§4.7) instead of filtering a materialized page.
func (s *Store) ListActiveExcludingWhitelist(ctx context.Context, limit, offset int) ([]blacklist.BlockedIP, int, error) {
	const notWhitelisted = `NOT EXISTS (
		SELECT 1 FROM whitelist_entries w
		WHERE w.ip_address = blocked_ips_active.ip_address AND w.is_active
	)`

	var total int
	countQuery := `SELECT count(*) FROM blocked_ips_active WHERE is_active AND ` + notWhitelisted
	if err := s.pool.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting active non-whitelisted ips: %w", err)
	}

	query := `SELECT ` + blockedIPColumns + ` FROM blocked_ips_active
		WHERE is_active AND ` + notWhitelisted + `
		ORDER BY last_seen DESC LIMIT $1 OFFSET $2`
	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing active non-whitelisted ips: %w", err)
	}
	defer rows.Close()

	var out []blacklist.BlockedIP
	for rows.Next() {
		b, err := scanBlockedIP(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning active non-whitelisted ip row: %w", err)
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

// CountBySource returns the per-source active-row count for the statistics endpoint.
func (s *Store) CountBySource(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source, count(*) FROM blocked_ips_active WHERE is_active GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("counting by source: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("scanning source count: %w", err)
		}
		out[source] = count
	}
	return out, rows.Err()
}

// TotalCount returns the total row count regardless of activity; the
// statistics view derives its inactive count from it.
func (s *Store) TotalCount(ctx context.Context) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM blocked_ips`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("counting blocked ips: %w", err)
	}
	return total, nil
}

// CountSince returns how many rows were first created at or after since,
// backing the statistics "recent additions" figure.
func (s *Store) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM blocked_ips WHERE created_at >= $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting recent blocked ips: %w", err)
	}
	return count, nil
}
