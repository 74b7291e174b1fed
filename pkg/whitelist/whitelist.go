// Package whitelist manages IP addresses that override any blacklist
// verdict (§3 WhitelistEntry, P1 whitelist-priority invariant).
package whitelist

import (
	"context"
	"time"
)

// Entry is a row of whitelist_entries.
type Entry struct {
	ID        int64
	IPAddress string
	Country   *string
	Reason    string
	Source    string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is implemented by pkg/whitelist/pgstore.Store.
type Store interface {
	IsActive(ctx context.Context, ipAddress string) (bool, error)
	Add(ctx context.Context, e Entry) (Entry, error)
	Remove(ctx context.Context, ipAddress string) error
	List(ctx context.Context, limit, offset int) ([]Entry, int, error)
}
