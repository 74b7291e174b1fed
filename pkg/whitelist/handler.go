package whitelist

import (
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/wisbric/blacklistguard/internal/httpserver"
)

// Handler exposes whitelist membership management over HTTP.
type Handler struct {
	store Store
}

// NewHandler wraps store.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type addRequest struct {
	IPAddress string  `json:"ip_address" validate:"required,ip"`
	Reason    string  `json:"reason"`
	Country   *string `json:"country"`
}

// Add serves POST /api/whitelist/add.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	entry, err := h.store.Add(r.Context(), Entry{
		IPAddress: req.IPAddress,
		Reason:    req.Reason,
		Country:   req.Country,
		Source:    "OPERATOR",
	})
	if err != nil {
		httpserver.RespondError(w, r, http.StatusInternalServerError, "database_error", "failed to add whitelist entry")
		return
	}
	httpserver.Respond(w, r, http.StatusCreated, entry)
}

type removeRequest struct {
	IPAddress string `json:"ip_address" validate:"required,ip"`
}

// Remove serves POST /api/whitelist/remove.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.store.Remove(r.Context(), req.IPAddress); err != nil {
		if err == pgx.ErrNoRows {
			httpserver.RespondError(w, r, http.StatusNotFound, "not_found", "ip address is not whitelisted")
			return
		}
		httpserver.RespondError(w, r, http.StatusInternalServerError, "database_error", "failed to remove whitelist entry")
		return
	}
	httpserver.Respond(w, r, http.StatusOK, map[string]any{"ip_address": req.IPAddress, "removed": true})
}

// List serves GET /api/whitelist?page=&page_size=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	entries, total, err := h.store.List(r.Context(), params.PageSize, params.Offset)
	if err != nil {
		httpserver.RespondError(w, r, http.StatusInternalServerError, "database_error", "failed to list whitelist entries")
		return
	}

	httpserver.Respond(w, r, http.StatusOK, httpserver.NewOffsetPage(entries, params, total))
}
