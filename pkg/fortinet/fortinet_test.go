package fortinet

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wisbric/blacklistguard/pkg/blacklist"
	"github.com/wisbric/blacklistguard/pkg/decision"
	"github.com/wisbric/blacklistguard/pkg/pulllog"
	"github.com/wisbric/blacklistguard/pkg/whitelist"
)

type fakeBlacklist struct {
	rows map[string]blacklist.BlockedIP
}

func (f *fakeBlacklist) Upsert(ctx context.Context, rows []blacklist.BlockedIP) (blacklist.UpsertResult, error) {
	return blacklist.UpsertResult{}, nil
}
func (f *fakeBlacklist) Get(ctx context.Context, ip string) (*blacklist.BlockedIP, error) {
	if row, ok := f.rows[ip]; ok {
		return &row, nil
	}
	return nil, nil
}
func (f *fakeBlacklist) ListActive(ctx context.Context, limit, offset int) ([]blacklist.BlockedIP, int, error) {
	var out []blacklist.BlockedIP
	for _, r := range f.rows {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}
func (f *fakeBlacklist) ListActiveExcludingWhitelist(ctx context.Context, limit, offset int) ([]blacklist.BlockedIP, int, error) {
	return f.ListActive(ctx, limit, offset)
}
func (f *fakeBlacklist) CountBySource(ctx context.Context) (map[string]int, error) { return nil, nil }
func (f *fakeBlacklist) TotalCount(ctx context.Context) (int, error)               { return len(f.rows), nil }
func (f *fakeBlacklist) CountSince(ctx context.Context, since time.Time) (int, error) {
	return 0, nil
}

type fakeWhitelist struct{}

func (fakeWhitelist) IsActive(ctx context.Context, ip string) (bool, error) { return false, nil }
func (fakeWhitelist) Add(ctx context.Context, e whitelist.Entry) (whitelist.Entry, error) {
	return e, nil
}
func (fakeWhitelist) Remove(ctx context.Context, ip string) error { return nil }
func (fakeWhitelist) List(ctx context.Context, limit, offset int) ([]whitelist.Entry, int, error) {
	return nil, 0, nil
}

type fakePullLogs struct {
	recorded []pulllog.Entry
}

func (f *fakePullLogs) Record(ctx context.Context, e pulllog.Entry) error {
	f.recorded = append(f.recorded, e)
	return nil
}
func (f *fakePullLogs) Recent(ctx context.Context, requestPath string, limit int) ([]pulllog.Entry, error) {
	var out []pulllog.Entry
	for _, e := range f.recorded {
		if e.RequestPath == requestPath {
			out = append(out, e)
		}
	}
	return out, nil
}

func newHandler(rows map[string]blacklist.BlockedIP) (*Handler, *fakePullLogs) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := decision.New(&fakeBlacklist{rows: rows}, fakeWhitelist{}, nil, logger)
	pullLogs := &fakePullLogs{}
	return NewHandler(svc, pullLogs), pullLogs
}

func TestBlocklist_TextFormat(t *testing.T) {
	h, pullLogs := newHandler(map[string]blacklist.BlockedIP{
		"1.2.3.4": {IPAddress: "1.2.3.4", Source: "REGTECH", Reason: "malware", IsActive: true},
		"5.6.7.8": {IPAddress: "5.6.7.8", Source: "REGTECH", Reason: "malware", IsActive: false},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/fortinet/blocklist", nil)
	rec := httptest.NewRecorder()
	h.Blocklist(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "1.2.3.4") {
		t.Errorf("body = %q, want to contain active ip", body)
	}
	if strings.Contains(body, "5.6.7.8") {
		t.Errorf("body = %q, want inactive ip excluded", body)
	}
	if len(pullLogs.recorded) != 1 || pullLogs.recorded[0].RequestPath != "/api/fortinet/blocklist" {
		t.Fatalf("pull log not recorded: %+v", pullLogs.recorded)
	}
}

func TestThreatFeed_SnapshotJSON(t *testing.T) {
	h, _ := newHandler(map[string]blacklist.BlockedIP{
		"1.2.3.4": {IPAddress: "1.2.3.4", Source: "REGTECH", Reason: "malware", IsActive: true},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/fortinet/threat-feed?command=snapshot&format=json", nil)
	rec := httptest.NewRecorder()
	h.ThreatFeed(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "1.2.3.4") {
		t.Errorf("body = %q, want to contain ip", rec.Body.String())
	}
}

func TestJSONConnector_FiltersByCountry(t *testing.T) {
	us := "US"
	kr := "KR"
	h, _ := newHandler(map[string]blacklist.BlockedIP{
		"1.2.3.4": {IPAddress: "1.2.3.4", Source: "REGTECH", Reason: "malware", IsActive: true, Country: &us},
		"5.6.7.8": {IPAddress: "5.6.7.8", Source: "REGTECH", Reason: "malware", IsActive: true, Country: &kr},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/fortinet/json-connector?country=us", nil)
	rec := httptest.NewRecorder()
	h.JSONConnector(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "1.2.3.4") || strings.Contains(body, "5.6.7.8") {
		t.Errorf("body = %q, want only the US entry", body)
	}
}

func TestPushLog_ReturnsRecordedEntries(t *testing.T) {
	h, pullLogs := newHandler(nil)
	pullLogs.recorded = []pulllog.Entry{
		{RequestPath: "/api/fortinet/push", DeviceIP: "10.0.0.1"},
		{RequestPath: "/api/fortinet/blocklist", DeviceIP: "10.0.0.2"},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/fortinet/push-log", nil)
	rec := httptest.NewRecorder()
	h.PushLog(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	require.Contains(t, body, "10.0.0.1")
	require.NotContains(t, body, "10.0.0.2")
}
