package handlers

import (
	"net/http"

	"github.com/kozaktomas/visagium/internal/config"
	"github.com/kozaktomas/visagium/internal/engine"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
	engine *engine.Engine
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config, eng *engine.Engine) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
		engine: eng,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	engine.Settings
	StoreBackend  string  `json:"store_backend"`
	LedgerBackend string  `json:"ledger_backend"`
	FrameRate     float64 `json:"frame_rate"`
	Timezone      string  `json:"timezone"`
}

// Get returns the effective configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ConfigResponse{
		Settings:      h.engine.Settings(),
		StoreBackend:  h.config.Storage.StoreBackend,
		LedgerBackend: h.config.Storage.LedgerBackend,
		FrameRate:     h.config.Web.FrameRate,
		Timezone:      h.config.Schedule.Timezone,
	})
}
