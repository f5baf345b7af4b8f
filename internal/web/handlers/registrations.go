package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/visagium/internal/engine"
	"github.com/kozaktomas/visagium/internal/extractor"
)

// RegistrationManager keeps registrations addressable by id. Finished
// registrations stay readable until the next one is created.
type RegistrationManager struct {
	mu            sync.RWMutex
	registrations map[string]*engine.Registration
}

// NewRegistrationManager creates a new registration manager
func NewRegistrationManager() *RegistrationManager {
	return &RegistrationManager{registrations: make(map[string]*engine.Registration)}
}

// Add stores reg under a new id and forgets finished registrations.
func (m *RegistrationManager) Add(reg *engine.Registration) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.registrations {
		if r.Progress().State.Terminal() {
			delete(m.registrations, id)
		}
	}
	id := uuid.New().String()
	m.registrations[id] = reg
	return id
}

// Get returns the registration with the given id
func (m *RegistrationManager) Get(id string) *engine.Registration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registrations[id]
}

// List returns every known registration ordered by id.
func (m *RegistrationManager) List() []RegistrationResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RegistrationResponse, 0, len(m.registrations))
	for id, r := range m.registrations {
		out = append(out, RegistrationResponse{RegistrationID: id, Progress: r.Progress()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegistrationID < out[j].RegistrationID })
	return out
}

// RegistrationsHandler drives the registration flow over HTTP
type RegistrationsHandler struct {
	engine    *engine.Engine
	extractor extractor.Extractor
	manager   *RegistrationManager
}

// NewRegistrationsHandler creates a new registrations handler
func NewRegistrationsHandler(eng *engine.Engine, ex extractor.Extractor, manager *RegistrationManager) *RegistrationsHandler {
	return &RegistrationsHandler{engine: eng, extractor: ex, manager: manager}
}

// CreateRegistrationRequest starts a registration
type CreateRegistrationRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RegistrationResponse describes a registration
type RegistrationResponse struct {
	RegistrationID string `json:"registration_id"`
	engine.Progress
	Error string `json:"error,omitempty"`
}

// Create starts a new registration
func (h *RegistrationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	reg, err := h.engine.NewRegistration(req.ID, req.Name)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	id := h.manager.Add(reg)
	respondJSON(w, http.StatusCreated, RegistrationResponse{RegistrationID: id, Progress: reg.Progress()})
}

// List returns the known registrations so an abandoned one can be found
// and cancelled
func (h *RegistrationsHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.manager.List())
}

// Get returns the state of a registration
func (h *RegistrationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, reg, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, RegistrationResponse{RegistrationID: id, Progress: reg.Progress()})
}

// Capture feeds one frame into the registration
func (h *RegistrationsHandler) Capture(w http.ResponseWriter, r *http.Request) {
	id, reg, ok := h.lookup(w, r)
	if !ok {
		return
	}

	frame, err := readFrame(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.extractor.Extract(r.Context(), frame)
	if err != nil {
		slog.Error("feature extraction failed", "registration", id, "error", err)
		respondError(w, http.StatusBadGateway, "feature extraction failed")
		return
	}
	photo, err := extractor.EncodeJPEG(res.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	progress, err := reg.Capture(r.Context(), photo, res.Detections)
	resp := RegistrationResponse{RegistrationID: id, Progress: progress}
	if err != nil {
		resp.Error = err.Error()
		respondJSON(w, statusFor(err), resp)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Cancel abandons a registration
func (h *RegistrationsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, reg, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := reg.Cancel(); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, RegistrationResponse{RegistrationID: id, Progress: reg.Progress()})
}

func (h *RegistrationsHandler) lookup(w http.ResponseWriter, r *http.Request) (string, *engine.Registration, bool) {
	id := chi.URLParam(r, "regId")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing registration ID")
		return "", nil, false
	}
	reg := h.manager.Get(id)
	if reg == nil {
		respondError(w, http.StatusNotFound, "registration not found")
		return "", nil, false
	}
	return id, reg, true
}
