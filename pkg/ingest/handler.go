package ingest

import (
	"net/http"
	"time"

	"github.com/wisbric/blacklistguard/internal/httpserver"
)

// Handler exposes Service as the agent-facing ingest endpoint. Shared-secret
// authentication is applied by the surrounding route group
// (httpserver.RequireOperatorKey), not here.
type Handler struct {
	svc *Service
}

// NewHandler wraps svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Ingest serves POST /api/collection/ingest (§4.8).
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var batch Batch
	if !httpserver.DecodeAndValidate(w, r, &batch) {
		return
	}

	stats, err := h.svc.Ingest(r.Context(), batch, time.Now())
	if err != nil {
		httpserver.RespondError(w, r, http.StatusInternalServerError, "database_error", "failed to ingest batch")
		return
	}

	httpserver.Respond(w, r, http.StatusOK, map[string]any{"success": true, "stats": stats})
}
