package api

import (
	"errors"
	"net/http"

	"github.com/goodtune/browseback/internal/domain"
	"github.com/goodtune/browseback/internal/storage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// listHandler serves one of the persisted domain lists.
type listHandler struct {
	key    string
	state  *storage.State
	logger zerolog.Logger
}

type listRequest struct {
	Domain string `json:"domain"`
}

// List returns the domains in the list.
func (h *listHandler) List(w http.ResponseWriter, r *http.Request) {
	set, err := h.state.List(r.Context(), h.key)
	if err != nil {
		h.logger.Error().Err(err).Str("list", h.key).Msg("Failed to read list")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve list")
		return
	}

	domains := set.Slice()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"domains": domains,
		"count":   len(domains),
	})
}

// Add inserts a domain. Entries may be hosts or full URLs.
func (h *listHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	name := domain.Normalize(req.Domain)
	if name == "" {
		writeError(w, http.StatusBadRequest, "Domain is required")
		return
	}

	err := h.state.UpdateList(r.Context(), h.key, func(set domain.Set) error {
		set.Add(name)
		return nil
	})
	if err != nil {
		h.logger.Error().Err(err).Str("list", h.key).Str("domain", name).Msg("Failed to add domain")
		writeError(w, http.StatusInternalServerError, "Failed to update list")
		return
	}

	h.logger.Info().Str("list", h.key).Str("domain", name).Msg("Domain added")
	writeJSON(w, http.StatusCreated, map[string]interface{}{"domain": name})
}

// Remove deletes a domain.
func (h *listHandler) Remove(w http.ResponseWriter, r *http.Request) {
	name := domain.Normalize(mux.Vars(r)["domain"])

	err := h.state.UpdateList(r.Context(), h.key, func(set domain.Set) error {
		if !set.Contains(name) {
			return storage.ErrNotFound
		}
		set.Remove(name)
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Domain not in list")
			return
		}
		h.logger.Error().Err(err).Str("list", h.key).Str("domain", name).Msg("Failed to remove domain")
		writeError(w, http.StatusInternalServerError, "Failed to update list")
		return
	}

	h.logger.Info().Str("list", h.key).Str("domain", name).Msg("Domain removed")
	w.WriteHeader(http.StatusNoContent)
}
