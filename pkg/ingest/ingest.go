// Package ingest implements the agent-to-central batch ingestion contract
// (C8): an authenticated remote agent pushes already-collected records,
// which are normalized and UPSERTed in bounded batches.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/wisbric/blacklistguard/pkg/blacklist"
	"github.com/wisbric/blacklistguard/pkg/collector"
	"github.com/wisbric/blacklistguard/pkg/normalize"
)

// BatchSize is how many normalized rows go into one UPSERT call (§4.8).
const BatchSize = 500

// ItemMetadata is the free-form metadata sub-object an ingest item may carry.
type ItemMetadata struct {
	DetectionCount  int        `json:"detection_count"`
	ConfidenceLevel string     `json:"confidence_level"`
	RemovalDate     *string    `json:"removal_date"`
	IsActive        *bool      `json:"is_active"`
}

// Item is one record of the agent's items array.
type Item struct {
	IPAddress   string       `json:"ip_address"`
	ThreatType  string       `json:"threat_type"`
	Severity    string       `json:"severity"`
	Source      string       `json:"source"`
	CountryCode string       `json:"country_code"`
	FirstSeen   string       `json:"first_seen"`
	LastSeen    string       `json:"last_seen"`
	Description string       `json:"description"`
	Metadata    ItemMetadata `json:"metadata"`
}

// Batch is the full request body.
type Batch struct {
	ServiceName    string `json:"service_name"`
	Items          []Item `json:"items"`
	CollectionDate string `json:"collection_date"`
}

// Stats is the response's {inserted, updated, errors, total}.
type Stats struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Errors   int `json:"errors"`
	Total    int `json:"total"`
}

// Service runs incoming batches through normalization and persistence.
type Service struct {
	store blacklist.Store
}

// New builds a Service backed by store.
func New(store blacklist.Store) *Service {
	return &Service{store: store}
}

// Ingest validates and normalizes every item in b, then UPSERTs the
// survivors in BatchSize chunks. Item-level validation or normalization
// failures are counted as errors and do not abort the remaining items or
// batches (§4.8).
func (s *Service) Ingest(ctx context.Context, b Batch, now time.Time) (Stats, error) {
	stats := Stats{Total: len(b.Items)}

	source := b.ServiceName
	if source == "" {
		source = "AGENT"
	}

	var normalized []normalize.Normalized
	for _, item := range b.Items {
		n, ok := normalizeItem(item, source, now)
		if !ok {
			stats.Errors++
			continue
		}
		normalized = append(normalized, n)
	}

	for start := 0; start < len(normalized); start += BatchSize {
		end := start + BatchSize
		if end > len(normalized) {
			end = len(normalized)
		}
		chunk := toBlockedIPs(normalized[start:end])

		result, err := s.store.Upsert(ctx, chunk)
		if err != nil {
			return stats, fmt.Errorf("upserting ingest chunk [%d:%d): %w", start, end, err)
		}
		stats.Inserted += result.New
		stats.Updated += result.Updated
	}

	return stats, nil
}

// normalizeItem maps one ingest Item through the shared C4 normalizer,
// translating the agent's flatter shape into a collector.Record first.
func normalizeItem(item Item, source string, now time.Time) (normalize.Normalized, bool) {
	confidence := normalize.MapQualitativeConfidence(item.Metadata.ConfidenceLevel)

	var country *string
	if item.CountryCode != "" {
		country = &item.CountryCode
	}

	reason := item.Description
	if reason == "" {
		reason = item.ThreatType
	}

	var detectionAt *time.Time
	if t, ok := parseDate(item.FirstSeen); ok {
		detectionAt = &t
	}

	var removalAt *time.Time
	if item.Metadata.RemovalDate != nil {
		if t, ok := parseDate(*item.Metadata.RemovalDate); ok {
			removalAt = &t
		}
	}

	rec := collector.Record{
		IPAddress:   item.IPAddress,
		Country:     country,
		Reason:      reason,
		Confidence:  &confidence,
		DetectionAt: detectionAt,
		RemovalAt:   removalAt,
	}

	n, rejectReason := normalize.Normalize(rec, source, now)
	return n, rejectReason == normalize.RejectNone
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func toBlockedIPs(rows []normalize.Normalized) []blacklist.BlockedIP {
	out := make([]blacklist.BlockedIP, len(rows))
	for i, r := range rows {
		out[i] = blacklist.BlockedIP{
			IPAddress:     r.IPAddress,
			Source:        r.Source,
			Reason:        r.Reason,
			Country:       r.Country,
			Confidence:    r.Confidence,
			DetectionDate: r.DetectionDate,
			RemovalDate:   r.RemovalDate,
			IsActive:      r.IsActive,
			RawPayload:    r.RawPayload,
		}
	}
	return out
}
