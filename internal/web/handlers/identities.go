package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/visagium/internal/database"
	"github.com/kozaktomas/visagium/internal/engine"
)

// IdentitiesHandler lists and deletes enrolled identities
type IdentitiesHandler struct {
	engine *engine.Engine
}

// NewIdentitiesHandler creates a new identities handler
func NewIdentitiesHandler(eng *engine.Engine) *IdentitiesHandler {
	return &IdentitiesHandler{engine: eng}
}

// IdentitiesResponse is the committed store snapshot
type IdentitiesResponse struct {
	Identities []database.IdentitySummary `json:"identities"`
	Encodings  int                        `json:"encodings"`
}

// List returns every enrolled identity
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	ids := h.engine.Identities()
	if ids == nil {
		ids = []database.IdentitySummary{}
	}
	respondJSON(w, http.StatusOK, IdentitiesResponse{Identities: ids, Encodings: h.engine.Len()})
}

// Delete runs the deletion flow for {id}; the name comes from the query string
func (h *IdentitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := r.URL.Query().Get("name")

	removed, err := h.engine.DeleteIdentity(r.Context(), id, name)
	if err != nil {
		slog.Warn("delete identity failed", "id", sanitizeForLog(id), "error", err)
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"removed": removed,
	})
}
