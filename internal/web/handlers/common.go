package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kozaktomas/visagium/internal/constants"
	"github.com/kozaktomas/visagium/internal/engine"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrDuplicateFace),
		errors.Is(err, engine.ErrRegistrationActive),
		errors.Is(err, engine.ErrRegistrationClosed):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNoFaceDetected),
		errors.Is(err, engine.ErrMultipleFacesDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrSyncFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondEngineError sends err with the status matching its kind.
func respondEngineError(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

// readFrame reads an image either from the "file" field of a multipart form
// or from the raw request body.
func readFrame(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxFrameSize)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(constants.MaxFrameSize); err != nil {
			return nil, fmt.Errorf("failed to parse multipart form: %w", err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing file field: %w", err)
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty frame")
	}
	return data, nil
}

// intQuery parses a positive integer query parameter, falling back to def
// and capping at maxValue.
func intQuery(r *http.Request, key string, def, maxValue int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return min(v, maxValue)
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
