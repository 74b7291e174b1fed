// Package blacklist is the persistence layer (C5) for blocked IP records:
// the batch UPSERT that merges a collection run's output into blocked_ips,
// and the read paths the decision and fortinet layers build on.
package blacklist

import (
	"context"
	"encoding/json"
	"time"
)

// BlockedIP is a single row of blocked_ips.
type BlockedIP struct {
	IPAddress      string
	Source         string
	Reason         string
	Country        *string
	Confidence     int
	DetectionCount int
	FirstSeen      time.Time
	LastSeen       time.Time
	DetectionDate  *time.Time
	RemovalDate    *time.Time
	IsActive       bool
	RawPayload     json.RawMessage
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UpsertResult reports how a batch UPSERT was split between brand-new rows
// and rows that already existed for (ip_address, source) (§4.5).
type UpsertResult struct {
	Total   int
	New     int
	Updated int
}

// Store is implemented by pkg/blacklist/pgstore.Store; kept as an interface
// so the scheduler and ingest handlers can be tested against a fake.
type Store interface {
	Upsert(ctx context.Context, rows []BlockedIP) (UpsertResult, error)
	Get(ctx context.Context, ipAddress string) (*BlockedIP, error)
	ListActive(ctx context.Context, limit, offset int) ([]BlockedIP, int, error)
	// ListActiveExcludingWhitelist is ListActive with an anti-join against
	// whitelist_entries applied in the query itself: the set difference
	// backing the active-blacklist views (§4.7) happens in SQL, never by
	// filtering an already-materialized page in application memory.
	ListActiveExcludingWhitelist(ctx context.Context, limit, offset int) ([]BlockedIP, int, error)
	CountBySource(ctx context.Context) (map[string]int, error)
	TotalCount(ctx context.Context) (int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}
