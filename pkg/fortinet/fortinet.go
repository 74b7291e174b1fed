// Package fortinet implements the perimeter pull endpoints a FortiGate (or
// compatible) firewall polls against: plain blocklist, threat-feed command
// form, and a filterable JSON connector (§6 Perimeter pull endpoints).
package fortinet

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wisbric/blacklistguard/internal/httpserver"
	"github.com/wisbric/blacklistguard/pkg/decision"
	"github.com/wisbric/blacklistguard/pkg/pulllog"
)

// Handler wires the decision service and the pull-audit log into the
// perimeter-facing routes.
type Handler struct {
	decision *decision.Service
	pullLogs pulllog.Store
}

// NewHandler builds a Handler.
func NewHandler(decisionSvc *decision.Service, pullLogs pulllog.Store) *Handler {
	return &Handler{decision: decisionSvc, pullLogs: pullLogs}
}

func (h *Handler) audit(r *http.Request, path string, ipCount int, status int, elapsed time.Duration) {
	if h.pullLogs == nil {
		return
	}
	_ = h.pullLogs.Record(r.Context(), pulllog.Entry{
		DeviceIP:       remoteIP(r),
		UserAgent:      r.UserAgent(),
		RequestPath:    path,
		IPCount:        ipCount,
		ResponseTimeMS: elapsed.Milliseconds(),
		ResponseStatus: status,
	})
}

func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i != -1 {
		host = host[:i]
	}
	return host
}

// Blocklist serves GET /api/fortinet/blocklist?format=text|json (§6).
func (h *Handler) Blocklist(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "text"
	}

	ips, err := h.decision.ActiveBlacklistText(r.Context())
	if err != nil {
		httpserver.RespondError(w, r, http.StatusInternalServerError, "database_error", "failed to load blocklist")
		return
	}
	sort.Strings(ips)

	switch format {
	case "json":
		httpserver.Respond(w, r, http.StatusOK, map[string]any{
			"ips":   ips,
			"total": len(ips),
		})
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Total-IPs", strconv.Itoa(len(ips)))
		w.Header().Set("X-Generated-At", time.Now().UTC().Format(time.RFC3339))
		w.Header().Set("X-Whitelist-Excluded", "true")
		w.Header().Set("X-Request-ID", httpserver.RequestIDFromContext(r.Context()))
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(strings.Join(ips, "\n")))
	}

	h.audit(r, "/api/fortinet/blocklist", len(ips), http.StatusOK, time.Since(start))
}

// threatFeedCommand is one entry of the threat-feed JSON form.
type threatFeedCommand struct {
	Name    string   `json:"name"`
	Command string   `json:"command"`
	Entries []string `json:"entries"`
}

// ThreatFeed serves GET /api/fortinet/threat-feed?command=snapshot|add|remove&format=json|text (§6).
// Only "snapshot" is meaningful against a read-only blocklist view; add/remove
// echo an empty entries list since this surface never mutates state.
func (h *Handler) ThreatFeed(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	command := r.URL.Query().Get("command")
	if command == "" {
		command = "snapshot"
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	var entries []string
	if command == "snapshot" {
		ips, err := h.decision.ActiveBlacklistText(r.Context())
		if err != nil {
			httpserver.RespondError(w, r, http.StatusInternalServerError, "database_error", "failed to load threat feed")
			return
		}
		entries = ips
	}

	if format == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(strings.Join(entries, "\n")))
	} else {
		httpserver.Respond(w, r, http.StatusOK, map[string]any{
			"commands": []threatFeedCommand{{Name: "ip", Command: command, Entries: entries}},
		})
	}

	h.audit(r, "/api/fortinet/threat-feed", len(entries), http.StatusOK, time.Since(start))
}

// connectorResult is one row of the json-connector results array.
type connectorResult struct {
	IPAddress string  `json:"ip_address"`
	Source    string  `json:"source"`
	Reason    string  `json:"reason"`
	Country   *string `json:"country,omitempty"`
}

// JSONConnector serves GET /api/fortinet/json-connector?limit=&risk_level=&country= (§6).
func (h *Handler) JSONConnector(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()
	country := strings.ToUpper(q.Get("country"))
	riskLevel := strings.ToLower(q.Get("risk_level"))

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	entries, err := h.decision.ActiveBlacklistEnhanced(r.Context())
	if err != nil {
		httpserver.RespondError(w, r, http.StatusInternalServerError, "database_error", "failed to load json connector feed")
		return
	}

	filtered := make([]connectorResult, 0, len(entries))
	for _, e := range entries {
		if country != "" && (e.Country == nil || strings.ToUpper(*e.Country) != country) {
			continue
		}
		if riskLevel != "" && !strings.Contains(strings.ToLower(e.Reason), riskLevel) {
			continue
		}
		filtered = append(filtered, connectorResult{IPAddress: e.IPAddress, Source: e.Source, Reason: e.Reason, Country: e.Country})
	}

	total := len(entries)
	filteredCount := len(filtered)
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}

	httpserver.Respond(w, r, http.StatusOK, map[string]any{
		"results": filtered,
		"metadata": map[string]any{
			"total":        total,
			"filtered":     filteredCount,
			"generated_at": time.Now().UTC().Format(time.RFC3339),
			"version":      "1",
			"filters": map[string]any{
				"country":    country,
				"risk_level": riskLevel,
				"limit":      limit,
			},
		},
	})

	h.audit(r, "/api/fortinet/json-connector", len(filtered), http.StatusOK, time.Since(start))
}

// PushLog serves GET /api/fortinet/push-log — a read view reusing PullLog's
// shape, distinguished by request_path (SPEC_FULL supplemented feature).
func (h *Handler) PushLog(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	entries, err := h.pullLogs.Recent(r.Context(), "/api/fortinet/push", limit)
	if err != nil {
		httpserver.RespondError(w, r, http.StatusInternalServerError, "database_error", "failed to load push log")
		return
	}
	httpserver.Respond(w, r, http.StatusOK, map[string]any{"entries": entries, "total": len(entries)})
}
