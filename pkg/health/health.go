// Package health implements the operator control surface (C9): liveness,
// scheduler status, ring-buffer log tail, manual/force collection triggers,
// and an auth-only test against stored credentials.
package health

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wisbric/blacklistguard/internal/httpserver"
	"github.com/wisbric/blacklistguard/internal/telemetry"
	"github.com/wisbric/blacklistguard/pkg/collector"
	"github.com/wisbric/blacklistguard/pkg/scheduler"
)

// Handler wires the DB/cache probes, scheduler, registry, and log buffer
// into the operator-facing routes.
type Handler struct {
	pool      *pgxpool.Pool
	cache     *redis.Client
	scheduler *scheduler.Scheduler
	registry  *collector.Registry
	ring      *telemetry.RingBuffer
	startedAt time.Time
}

// NewHandler builds a Handler.
func NewHandler(pool *pgxpool.Pool, cache *redis.Client, sched *scheduler.Scheduler, registry *collector.Registry, ring *telemetry.RingBuffer) *Handler {
	return &Handler{pool: pool, cache: cache, scheduler: sched, registry: registry, ring: ring, startedAt: time.Now()}
}

// roundMS converts a duration to milliseconds rounded to two decimal places.
func roundMS(d time.Duration) float64 {
	return math.Round(float64(d.Microseconds())/10) / 100
}

const probeTimeout = 2 * time.Second

// Health serves GET /health. Component failures degrade the status field
// but the endpoint itself always answers 200 (§4.9 graceful degradation).
// Latency and uptime are reported alongside the component map so an
// operator dashboard can chart probe latency without a separate call.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	components := map[string]string{
		"database": "healthy",
		"cache":    "healthy",
	}

	dbStart := time.Now()
	if err := h.pool.Ping(ctx); err != nil {
		components["database"] = "unhealthy"
	}
	dbLatency := roundMS(time.Since(dbStart))

	cacheStart := time.Now()
	if h.cache != nil {
		if err := h.cache.Ping(ctx).Err(); err != nil {
			components["cache"] = "degraded"
		}
	} else {
		components["cache"] = "degraded"
	}
	cacheLatency := roundMS(time.Since(cacheStart))

	status := "healthy"
	for _, v := range components {
		if v == "unhealthy" {
			status = "unhealthy"
			break
		}
		if v == "degraded" && status == "healthy" {
			status = "degraded"
		}
	}

	httpserver.Respond(w, r, http.StatusOK, map[string]any{
		"status":             status,
		"components":         components,
		"uptime_seconds":     int64(time.Since(h.startedAt).Seconds()),
		"database_latency_ms": dbLatency,
		"cache_latency_ms":    cacheLatency,
	})
}

// sourceSnapshot is one entry of the /status response.
type sourceSnapshot struct {
	Source string           `json:"source"`
	State  scheduler.State  `json:"state"`
}

// Status serves GET /status — the scheduler snapshot for every registered source.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	snapshots := make([]sourceSnapshot, 0, len(names))
	for _, name := range names {
		snapshots = append(snapshots, sourceSnapshot{Source: name, State: h.scheduler.Snapshot(name)})
	}
	httpserver.Respond(w, r, http.StatusOK, map[string]any{"sources": snapshots})
}

// Logs serves GET /logs?minutes=N&level=L.
func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	minutes := 15
	if raw := r.URL.Query().Get("minutes"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			minutes = v
		}
	}
	level := r.URL.Query().Get("level")

	cutoff := time.Now().Add(-time.Duration(minutes) * time.Minute)
	entries := h.ring.Since(cutoff, level)
	httpserver.Respond(w, r, http.StatusOK, map[string]any{"entries": entries, "total": len(entries)})
}

var logStreamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Operator tooling connects cross-origin (dashboards served from a
	// different host); the route itself sits behind RequireOperatorKey.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	logStreamWriteWait  = 10 * time.Second
	logStreamPingPeriod = 30 * time.Second
)

// LogsStream serves GET /logs/stream?level=L — a best-effort live tail of
// the ring buffer over a websocket. One subscriber channel per connection;
// a slow reader drops entries rather than blocking the logger.
func (h *Handler) LogsStream(w http.ResponseWriter, r *http.Request) {
	level := r.URL.Query().Get("level")

	conn, err := logStreamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	entries, cancel := h.ring.Subscribe()
	defer cancel()

	go readUntilClosed(conn)

	ping := time.NewTicker(logStreamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return
			}
			if level != "" && e.Level != level {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(logStreamWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(logStreamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// readUntilClosed drains inbound frames so the connection notices a client
// disconnect; the stream is server -> client only.
func readUntilClosed(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			conn.Close()
			return
		}
	}
}

// triggerRequest is the body of POST /trigger.
type triggerRequest struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// Trigger serves POST /trigger — a manual, out-of-band collection for every
// registered source (§4.6 manual trigger).
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	rng, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		httpserver.RespondError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	results := make(map[string]string)
	for _, name := range h.registry.Names() {
		if err := h.scheduler.Trigger(r.Context(), name, rng); err != nil {
			results[name] = "failed: " + err.Error()
			continue
		}
		results[name] = "triggered"
	}
	httpserver.Respond(w, r, http.StatusOK, map[string]any{"results": results})
}

// TestAuthRoute adapts TestAuth to a chi route handler, reading {source} from the URL.
func (h *Handler) TestAuthRoute(w http.ResponseWriter, r *http.Request) {
	h.TestAuth(w, r, chi.URLParam(r, "source"))
}

// ForceCollectionRoute adapts ForceCollection to a chi route handler, reading {source} from the URL.
func (h *Handler) ForceCollectionRoute(w http.ResponseWriter, r *http.Request) {
	h.ForceCollection(w, r, chi.URLParam(r, "source"))
}

// TestAuth serves POST /api/test-auth/{source} — exercises authentication
// against stored credentials without running a collection (§4.9).
func (h *Handler) TestAuth(w http.ResponseWriter, r *http.Request, sourceName string) {
	src, err := h.registry.Get(sourceName)
	if err != nil {
		httpserver.RespondError(w, r, http.StatusNotFound, "not_found", "unknown source: "+sourceName)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	if err := src.Authenticate(ctx); err != nil {
		httpserver.Respond(w, r, http.StatusOK, map[string]any{"source": sourceName, "authenticated": false, "error": err.Error()})
		return
	}
	httpserver.Respond(w, r, http.StatusOK, map[string]any{"source": sourceName, "authenticated": true})
}

// ForceCollection serves POST /api/force-collection/{source} — a 50-page
// forced run bypassing DISABLE_AUTO_COLLECTION (§4.9, §4.6).
func (h *Handler) ForceCollection(w http.ResponseWriter, r *http.Request, sourceName string) {
	if _, err := h.registry.Get(sourceName); err != nil {
		httpserver.RespondError(w, r, http.StatusNotFound, "not_found", "unknown source: "+sourceName)
		return
	}

	if err := h.scheduler.Force(r.Context(), sourceName); err != nil {
		httpserver.RespondError(w, r, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}
	httpserver.Respond(w, r, http.StatusOK, map[string]any{"source": sourceName, "triggered": true})
}

func parseRange(start, end string) (collector.DateRange, error) {
	var rng collector.DateRange
	if start != "" {
		t, err := time.Parse("2006-01-02", start)
		if err != nil {
			return rng, err
		}
		rng.Start = t
	}
	if end != "" {
		t, err := time.Parse("2006-01-02", end)
		if err != nil {
			return rng, err
		}
		rng.End = t
	}
	return rng, nil
}
