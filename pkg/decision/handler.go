package decision

import (
	"net/http"
	"time"

	"github.com/wisbric/blacklistguard/internal/httpserver"
)

// Handler exposes Service over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler wraps svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type checkRequest struct {
	IP string `json:"ip" validate:"required,ip"`
}

// Check serves both GET /api/blacklist/check?ip=... and
// POST /api/blacklist/check {ip} — the consolidated single implementation
// of what the original split across two near-duplicate routes (§9).
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var ip string
	if r.Method == http.MethodGet {
		ip = r.URL.Query().Get("ip")
		if ip == "" {
			httpserver.RespondError(w, r, http.StatusBadRequest, "validation_error", "missing required query parameter: ip")
			return
		}
	} else {
		var req checkRequest
		if !httpserver.DecodeAndValidate(w, r, &req) {
			return
		}
		ip = req.IP
	}

	verdict := h.svc.CheckBlacklist(r.Context(), ip)
	httpserver.Respond(w, r, http.StatusOK, verdict)
}

// List serves GET /api/blacklist/list?format=text|enhanced|fortigate, the
// aggregated active-blacklist view (§4.7).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	format := Format(r.URL.Query().Get("format"))
	if format == "" {
		format = FormatEnhanced
	}

	switch format {
	case FormatText:
		ips, err := h.svc.ActiveBlacklistText(r.Context())
		if err != nil {
			httpserver.RespondError(w, r, http.StatusInternalServerError, "database_error", "failed to load blacklist")
			return
		}
		httpserver.Respond(w, r, http.StatusOK, map[string]any{"ips": ips, "total": len(ips)})
	case FormatFortigate:
		view, err := h.svc.ActiveBlacklistFortigate(r.Context())
		if err != nil {
			httpserver.RespondError(w, r, http.StatusInternalServerError, "database_error", "failed to load blacklist")
			return
		}
		httpserver.Respond(w, r, http.StatusOK, view)
	default:
		entries, err := h.svc.ActiveBlacklistEnhanced(r.Context())
		if err != nil {
			httpserver.RespondError(w, r, http.StatusInternalServerError, "database_error", "failed to load blacklist")
			return
		}
		httpserver.Respond(w, r, http.StatusOK, map[string]any{"entries": entries, "total": len(entries)})
	}
}

// Stats serves GET /api/blacklist/statistics (§4.7).
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Statistics(r.Context(), time.Now())
	if err != nil {
		httpserver.RespondError(w, r, http.StatusInternalServerError, "database_error", "failed to compute statistics")
		return
	}
	httpserver.Respond(w, r, http.StatusOK, stats)
}
