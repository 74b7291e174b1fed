package whitelist

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
)

type fakeStore struct {
	entries  map[string]Entry
	addErr   error
	removeErr error
}

func (f *fakeStore) IsActive(ctx context.Context, ip string) (bool, error) {
	e, ok := f.entries[ip]
	return ok && e.IsActive, nil
}
func (f *fakeStore) Add(ctx context.Context, e Entry) (Entry, error) {
	if f.addErr != nil {
		return Entry{}, f.addErr
	}
	e.IsActive = true
	f.entries[e.IPAddress] = e
	return e, nil
}
func (f *fakeStore) Remove(ctx context.Context, ip string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	if _, ok := f.entries[ip]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.entries, ip)
	return nil
}
func (f *fakeStore) List(ctx context.Context, limit, offset int) ([]Entry, int, error) {
	out := make([]Entry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e)
	}
	return out, len(out), nil
}

func TestAdd(t *testing.T) {
	store := &fakeStore{entries: map[string]Entry{}}
	h := NewHandler(store)

	req := httptest.NewRequest(http.MethodPost, "/api/whitelist/add", bytes.NewBufferString(`{"ip_address":"198.51.100.1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Add(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if !store.entries["198.51.100.1"].IsActive {
		t.Fatalf("entry not recorded as active")
	}
}

func TestRemove_NotFound(t *testing.T) {
	store := &fakeStore{entries: map[string]Entry{}}
	h := NewHandler(store)

	req := httptest.NewRequest(http.MethodPost, "/api/whitelist/remove", bytes.NewBufferString(`{"ip_address":"198.51.100.1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Remove(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
}

func TestRemove_Success(t *testing.T) {
	store := &fakeStore{entries: map[string]Entry{"198.51.100.1": {IPAddress: "198.51.100.1", IsActive: true}}}
	h := NewHandler(store)

	req := httptest.NewRequest(http.MethodPost, "/api/whitelist/remove", bytes.NewBufferString(`{"ip_address":"198.51.100.1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Remove(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if _, ok := store.entries["198.51.100.1"]; ok {
		t.Fatalf("entry still present after remove")
	}
}

func TestList(t *testing.T) {
	store := &fakeStore{entries: map[string]Entry{
		"198.51.100.1": {IPAddress: "198.51.100.1", IsActive: true},
		"198.51.100.2": {IPAddress: "198.51.100.2", IsActive: true},
	}}
	h := NewHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/whitelist?page=1&page_size=10", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}
