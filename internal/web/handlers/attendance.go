package handlers

import (
	"net/http"

	"github.com/kozaktomas/visagium/internal/constants"
	"github.com/kozaktomas/visagium/internal/database"
)

// AttendanceHandler serves the attendance ledger
type AttendanceHandler struct {
	ledger database.LedgerReader
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(ledger database.LedgerReader) *AttendanceHandler {
	return &AttendanceHandler{ledger: ledger}
}

// List returns the most recent ledger rows, newest first
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", constants.DefaultAttendanceLimit, constants.MaxAttendanceLimit)

	records, err := h.ledger.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read attendance ledger")
		return
	}
	if records == nil {
		records = []database.AttendanceRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}
