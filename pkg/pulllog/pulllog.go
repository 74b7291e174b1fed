// Package pulllog is the append-only audit trail of firewall pull requests
// against the perimeter endpoints (§6 persisted-state layout, pull_logs).
package pulllog

import (
	"context"
	"time"
)

// Entry is a row of pull_logs.
type Entry struct {
	ID             int64
	DeviceIP       string
	UserAgent      string
	RequestPath    string
	IPCount        int
	ResponseTimeMS int64
	ResponseStatus int
	CreatedAt      time.Time
}

// Store is implemented by pkg/pulllog/pgstore.Store.
type Store interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, requestPath string, limit int) ([]Entry, error)
}
