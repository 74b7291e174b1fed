package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/wisbric/blacklistguard/internal/telemetry"
	"github.com/wisbric/blacklistguard/pkg/collector"
	"github.com/wisbric/blacklistguard/pkg/scheduler"
)

type fakeSource struct {
	name    string
	authErr error
	records []collector.Record
	collErr error
}

func (f *fakeSource) Name() string { return f.name }
func (f *fakeSource) Authenticate(ctx context.Context) error { return f.authErr }
func (f *fakeSource) Collect(ctx context.Context, rng collector.DateRange, maxPages int) ([]collector.Record, error) {
	return f.records, f.collErr
}

type fakeRunner struct {
	items int
	err   error
}

func (f *fakeRunner) RunCollection(ctx context.Context, sourceName string, rng collector.DateRange, maxPages int, scheduled bool) (int, error) {
	return f.items, f.err
}

func newTestHandler(src *fakeSource, runner scheduler.Runner) *Handler {
	registry := collector.NewRegistry()
	registry.Register(src)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := scheduler.New(registry, runner, logger, scheduler.Config{DisableAutoCollection: true})
	ring := telemetry.NewRingBuffer()

	return NewHandler(nil, nil, sched, registry, ring)
}

func TestLogs_FiltersByMinutesAndLevel(t *testing.T) {
	h := newTestHandler(&fakeSource{name: "REGTECH"}, &fakeRunner{})
	h.ring.Push(telemetry.Entry{Timestamp: time.Now(), Level: "INFO", Message: "recent info"})
	h.ring.Push(telemetry.Entry{Timestamp: time.Now().Add(-time.Hour), Level: "ERROR", Message: "old error"})

	req := httptest.NewRequest(http.MethodGet, "/logs?minutes=15", nil)
	rec := httptest.NewRecorder()
	h.Logs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "recent info") {
		t.Errorf("body = %q, want recent entry", body)
	}
	if strings.Contains(body, "old error") {
		t.Errorf("body = %q, want old entry excluded by minutes window", body)
	}
}

func TestTestAuth_Failure(t *testing.T) {
	h := newTestHandler(&fakeSource{name: "REGTECH", authErr: errors.New("bad credentials")}, &fakeRunner{})

	req := httptest.NewRequest(http.MethodPost, "/api/test-auth/REGTECH", nil)
	rec := httptest.NewRecorder()
	h.TestAuth(rec, req, "REGTECH")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var env struct {
		Data struct {
			Authenticated bool `json:"authenticated"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if env.Data.Authenticated {
		t.Errorf("authenticated = true, want false")
	}
}

func TestTestAuth_UnknownSource(t *testing.T) {
	h := newTestHandler(&fakeSource{name: "REGTECH"}, &fakeRunner{})

	req := httptest.NewRequest(http.MethodPost, "/api/test-auth/UNKNOWN", nil)
	rec := httptest.NewRecorder()
	h.TestAuth(rec, req, "UNKNOWN")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
}

func TestForceCollection_TriggersRunner(t *testing.T) {
	runner := &fakeRunner{items: 42}
	h := newTestHandler(&fakeSource{name: "REGTECH"}, runner)

	req := httptest.NewRequest(http.MethodPost, "/api/force-collection/REGTECH", nil)
	rec := httptest.NewRecorder()
	h.ForceCollection(rec, req, "REGTECH")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestTrigger_AllSources(t *testing.T) {
	h := newTestHandler(&fakeSource{name: "REGTECH"}, &fakeRunner{})

	req := httptest.NewRequest(http.MethodPost, "/trigger", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Trigger(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "triggered") {
		t.Errorf("body = %q, want triggered result", rec.Body.String())
	}
}

func TestLogsStream_DeliversPushedEntry(t *testing.T) {
	h := newTestHandler(&fakeSource{name: "REGTECH"}, &fakeRunner{})

	r := chi.NewRouter()
	r.Get("/logs/stream", h.LogsStream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/logs/stream"
	u, err := url.Parse(wsURL)
	if err != nil {
		t.Fatalf("parsing ws url: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()

	// Give the handler a moment to register its subscription before pushing.
	time.Sleep(20 * time.Millisecond)
	h.ring.Push(telemetry.Entry{Timestamp: time.Now(), Level: "INFO", Message: "live tail entry"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var entry telemetry.Entry
	if err := conn.ReadJSON(&entry); err != nil {
		t.Fatalf("reading from stream: %v", err)
	}
	if entry.Message != "live tail entry" {
		t.Errorf("Message = %q, want %q", entry.Message, "live tail entry")
	}
}
