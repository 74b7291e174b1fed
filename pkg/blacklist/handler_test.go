package blacklist

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeStore struct {
	rows     map[string]BlockedIP
	upserted []BlockedIP
	getErr   error
	upErr    error
}

func (f *fakeStore) Upsert(ctx context.Context, rows []BlockedIP) (UpsertResult, error) {
	if f.upErr != nil {
		return UpsertResult{}, f.upErr
	}
	f.upserted = append(f.upserted, rows...)
	return UpsertResult{Total: len(rows), New: len(rows)}, nil
}
func (f *fakeStore) Get(ctx context.Context, ip string) (*BlockedIP, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if row, ok := f.rows[ip]; ok {
		return &row, nil
	}
	return nil, nil
}
func (f *fakeStore) ListActive(ctx context.Context, limit, offset int) ([]BlockedIP, int, error) {
	return nil, 0, nil
}
func (f *fakeStore) ListActiveExcludingWhitelist(ctx context.Context, limit, offset int) ([]BlockedIP, int, error) {
	return nil, 0, nil
}
func (f *fakeStore) CountBySource(ctx context.Context) (map[string]int, error) { return nil, nil }
func (f *fakeStore) TotalCount(ctx context.Context) (int, error)               { return 0, nil }
func (f *fakeStore) CountSince(ctx context.Context, since time.Time) (int, error) {
	return 0, nil
}

func doManualAdd(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/blacklist/manual-add", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ManualAdd(rec, req)
	return rec
}

func TestManualAdd_CreatesEntry(t *testing.T) {
	store := &fakeStore{rows: map[string]BlockedIP{}}
	h := NewHandler(store)

	rec := doManualAdd(t, h, `{"ip_address":"203.0.113.5","reason":"analyst flagged"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if len(store.upserted) != 1 || store.upserted[0].Source != manualSource {
		t.Fatalf("unexpected upserted rows: %+v", store.upserted)
	}
}

func TestManualAdd_ConflictWhenAlreadyActive(t *testing.T) {
	store := &fakeStore{rows: map[string]BlockedIP{
		"203.0.113.5": {IPAddress: "203.0.113.5", IsActive: true},
	}}
	h := NewHandler(store)

	rec := doManualAdd(t, h, `{"ip_address":"203.0.113.5"}`)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
}

func TestManualAdd_ValidationError(t *testing.T) {
	store := &fakeStore{}
	h := NewHandler(store)

	rec := doManualAdd(t, h, `{"ip_address":"not-an-ip"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	var env map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if env["success"] != false {
		t.Errorf("success = %v, want false", env["success"])
	}
}
