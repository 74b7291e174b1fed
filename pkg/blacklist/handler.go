package blacklist

import (
	"net/http"
	"time"

	"github.com/wisbric/blacklistguard/internal/httpserver"
)

// Handler exposes manual single-IP operations over HTTP.
type Handler struct {
	store Store
}

// NewHandler wraps store.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type manualAddRequest struct {
	IPAddress string  `json:"ip_address" validate:"required,ip"`
	Reason    string  `json:"reason"`
	Country   *string `json:"country"`
}

const manualSource = "MANUAL"

// ManualAdd serves POST /api/blacklist/manual-add. A second call for the
// same IP returns 409 — this store is additive-only from the operator's
// perspective, never a silent re-activation (§8 scenario 5).
func (h *Handler) ManualAdd(w http.ResponseWriter, r *http.Request) {
	var req manualAddRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	existing, err := h.store.Get(r.Context(), req.IPAddress)
	if err != nil {
		httpserver.RespondError(w, r, http.StatusInternalServerError, "database_error", "failed to check existing entry")
		return
	}
	if existing != nil && existing.IsActive {
		httpserver.RespondErrorDetails(w, r, http.StatusConflict, "conflict", "ip address is already blocked",
			map[string]any{"ip_address": req.IPAddress})
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "Manually added"
	}

	now := time.Now().UTC()
	_, err = h.store.Upsert(r.Context(), []BlockedIP{{
		IPAddress:     req.IPAddress,
		Source:        manualSource,
		Reason:        reason,
		Country:       req.Country,
		Confidence:    90,
		IsActive:      true,
		DetectionDate: &now,
	}})
	if err != nil {
		httpserver.RespondError(w, r, http.StatusInternalServerError, "database_error", "failed to add ip address")
		return
	}

	httpserver.Respond(w, r, http.StatusCreated, map[string]any{"ip_address": req.IPAddress, "source": manualSource})
}
