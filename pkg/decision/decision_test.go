package decision

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/wisbric/blacklistguard/pkg/blacklist"
	"github.com/wisbric/blacklistguard/pkg/whitelist"
)

type fakeBlacklist struct {
	rows map[string]blacklist.BlockedIP
	err  error
}

func (f *fakeBlacklist) Upsert(ctx context.Context, rows []blacklist.BlockedIP) (blacklist.UpsertResult, error) {
	return blacklist.UpsertResult{}, nil
}
func (f *fakeBlacklist) Get(ctx context.Context, ip string) (*blacklist.BlockedIP, error) {
	if f.err != nil {
		return nil, f.err
	}
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

type fakeWhitelist struct {
	active map[string]bool
}

func (f *fakeWhitelist) IsActive(ctx context.Context, ip string) (bool, error) {
	return f.active[ip], nil
}
func (f *fakeWhitelist) Add(ctx context.Context, e whitelist.Entry) (whitelist.Entry, error) {
	return e, nil
}
func (f *fakeWhitelist) Remove(ctx context.Context, ip string) error { return nil }
func (f *fakeWhitelist) List(ctx context.Context, limit, offset int) ([]whitelist.Entry, int, error) {
	return nil, 0, nil
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newService(rows map[string]blacklist.BlockedIP, whitelisted map[string]bool) *Service {
	logger := slog.New(slog.NewTextHandler(discard{}, nil))
	return New(&fakeBlacklist{rows: rows}, &fakeWhitelist{active: whitelisted}, nil, logger)
}

func TestCheckBlacklist_WhitelistPriority(t *testing.T) {
	svc := newService(map[string]blacklist.BlockedIP{
		"1.2.3.4": {IPAddress: "1.2.3.4", Source: "REGTECH", Reason: "malware", IsActive: true},
	}, map[string]bool{"1.2.3.4": true})

	v := svc.CheckBlacklist(context.Background(), "1.2.3.4")
	if v.Blocked || v.Reason != "whitelist" {
		t.Fatalf("verdict = %+v, want blocked=false reason=whitelist", v)
	}
}

func TestCheckBlacklist_ActiveBlock(t *testing.T) {
	svc := newService(map[string]blacklist.BlockedIP{
		"5.6.7.8": {IPAddress: "5.6.7.8", Source: "REGTECH", Reason: "malware", IsActive: true, DetectionCount: 3},
	}, nil)

	v := svc.CheckBlacklist(context.Background(), "5.6.7.8")
	if !v.Blocked || v.Reason != "malware" {
		t.Fatalf("verdict = %+v, want blocked=true reason=malware", v)
	}
}

func TestCheckBlacklist_NotFound(t *testing.T) {
	svc := newService(nil, nil)
	v := svc.CheckBlacklist(context.Background(), "9.9.9.9")
	if v.Blocked || v.Reason != "not_in_blacklist" {
		t.Fatalf("verdict = %+v, want not_in_blacklist", v)
	}
}

func TestCheckBlacklist_FailsOpenOnError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(discard{}, nil))
	svc := New(&fakeBlacklist{err: errors.New("db down")}, &fakeWhitelist{}, nil, logger)

	v := svc.CheckBlacklist(context.Background(), "1.1.1.1")
	if v.Blocked || v.Reason != "error" {
		t.Fatalf("verdict = %+v, want fail-open error", v)
	}
}
