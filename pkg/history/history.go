// Package history is the append-only ledger of collection runs (§3
// CollectionRun, P10 history-completeness invariant).
package history

import (
	"context"
	"encoding/json"
	"time"
)

// Run is a row of collection_history.
type Run struct {
	ID             int64
	ServiceName    string
	StartedAt      time.Time
	FinishedAt     time.Time
	Success        bool
	ItemsCollected int
	DurationMS     int64
	ErrorMessage   string
	Details        json.RawMessage
}

// Details is the structured payload recorded alongside each run, matching
// the source's new_count/updated_count breakdown.
type Details struct {
	NewCount     int `json:"new_count"`
	UpdatedCount int `json:"updated_count"`
}

// Store is implemented by pkg/history/pgstore.Store.
type Store interface {
	Record(ctx context.Context, r Run) error
	Recent(ctx context.Context, serviceName string, limit int) ([]Run, error)
	LastSuccess(ctx context.Context, serviceName string) (*Run, error)
}
