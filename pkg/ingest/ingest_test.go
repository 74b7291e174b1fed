package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/wisbric/blacklistguard/pkg/blacklist"
)

type fakeStore struct {
	upserted []blacklist.BlockedIP
}

func (f *fakeStore) Upsert(ctx context.Context, rows []blacklist.BlockedIP) (blacklist.UpsertResult, error) {
	f.upserted = append(f.upserted, rows...)
	return blacklist.UpsertResult{Total: len(rows), New: len(rows)}, nil
}
func (f *fakeStore) Get(ctx context.Context, ip string) (*blacklist.BlockedIP, error) { return nil, nil }
func (f *fakeStore) ListActive(ctx context.Context, limit, offset int) ([]blacklist.BlockedIP, int, error) {
	return nil, 0, nil
}
func (f *fakeStore) ListActiveExcludingWhitelist(ctx context.Context, limit, offset int) ([]blacklist.BlockedIP, int, error) {
	return nil, 0, nil
}
func (f *fakeStore) CountBySource(ctx context.Context) (map[string]int, error) { return nil, nil }
func (f *fakeStore) TotalCount(ctx context.Context) (int, error)               { return 0, nil }
func (f *fakeStore) CountSince(ctx context.Context, since time.Time) (int, error) {
	return 0, nil
}

func TestIngest_ValidAndInvalidItems(t *testing.T) {
	store := &fakeStore{}
	svc := New(store)

	batch := Batch{
		ServiceName: "AGENT-1",
		Items: []Item{
			{IPAddress: "8.8.8.8", ThreatType: "malware", Metadata: ItemMetadata{ConfidenceLevel: "high"}},
			{IPAddress: "192.168.1.1", ThreatType: "malware"}, // private, rejected
		},
	}

	stats, err := svc.Ingest(context.Background(), batch, time.Now())
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if stats.Inserted != 1 {
		t.Errorf("Inserted = %d, want 1", stats.Inserted)
	}
	if len(store.upserted) != 1 || store.upserted[0].IPAddress != "8.8.8.8" {
		t.Fatalf("unexpected upserted rows: %+v", store.upserted)
	}
}

func TestIngest_DefaultsServiceName(t *testing.T) {
	store := &fakeStore{}
	svc := New(store)

	batch := Batch{Items: []Item{{IPAddress: "1.1.1.1"}}}
	if _, err := svc.Ingest(context.Background(), batch, time.Now()); err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if store.upserted[0].Source != "AGENT" {
		t.Errorf("Source = %q, want AGENT", store.upserted[0].Source)
	}
}
