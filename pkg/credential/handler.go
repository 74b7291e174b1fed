package credential

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wisbric/blacklistguard/internal/httpserver"
)

// Store is the subset of pgstore.Store the handler needs, kept narrow so
// tests can fake it without pulling in pgx.
type Store interface {
	Upsert(ctx context.Context, serviceName, username, password string, enabled bool, intervalSeconds int) error
	UpdateSettings(ctx context.Context, serviceName string, enabled bool, intervalSeconds int) error
	Get(ctx context.Context, serviceName string) (*Credential, error)
}

// Handler exposes credential settings management over HTTP. The password
// itself is never returned in any response.
type Handler struct {
	store Store
}

// NewHandler wraps store.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type setRequest struct {
	Username           string `json:"username" validate:"required"`
	Password           string `json:"password" validate:"required"`
	Enabled            bool   `json:"enabled"`
	CollectionInterval int    `json:"collection_interval"`
}

// Set serves POST /api/collection/credentials/{source} — full credential
// write, requiring both username and password.
func (h *Handler) Set(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	var req setRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.store.Upsert(r.Context(), source, req.Username, req.Password, req.Enabled, req.CollectionInterval); err != nil {
		httpserver.RespondError(w, r, http.StatusInternalServerError, "database_error", "failed to store credential")
		return
	}
	httpserver.Respond(w, r, http.StatusOK, map[string]any{"source": source, "updated": true})
}

type settingsRequest struct {
	Enabled            bool `json:"enabled"`
	CollectionInterval int  `json:"collection_interval"`
}

// Settings serves PATCH /api/collection/credentials/{source}/settings — the
// settings-only update path that never requires re-supplying the password
// (§4.5 Credential invariant).
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	var req settingsRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.store.UpdateSettings(r.Context(), source, req.Enabled, req.CollectionInterval); err != nil {
		httpserver.RespondError(w, r, http.StatusNotFound, "not_found", "unknown credential: "+source)
		return
	}
	httpserver.Respond(w, r, http.StatusOK, map[string]any{"source": source, "updated": true})
}

// Enable serves POST /api/collection/sources/{source}/enable, toggling
// Credential.enabled without touching the password (SPEC_FULL 2a).
func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, true)
}

// Disable serves POST /api/collection/sources/{source}/disable.
func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, false)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, enabled bool) {
	source := chi.URLParam(r, "source")

	cred, err := h.store.Get(r.Context(), source)
	if err != nil || cred == nil {
		httpserver.RespondError(w, r, http.StatusNotFound, "not_found", "unknown credential: "+source)
		return
	}

	if err := h.store.UpdateSettings(r.Context(), source, enabled, cred.CollectionInterval); err != nil {
		httpserver.RespondError(w, r, http.StatusInternalServerError, "database_error", "failed to update credential settings")
		return
	}
	httpserver.Respond(w, r, http.StatusOK, map[string]any{"source": source, "enabled": enabled})
}
