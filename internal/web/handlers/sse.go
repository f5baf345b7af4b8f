package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/kozaktomas/visagium/internal/logger"
)

// EventsHandler streams the operator log over server-sent events
type EventsHandler struct {
	stream *logger.Stream
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(stream *logger.Stream) *EventsHandler {
	return &EventsHandler{stream: stream}
}

// Stream sends every log record until the client disconnects
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.stream == nil {
		respondError(w, http.StatusServiceUnavailable, "log stream not configured")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventCh := h.stream.AddListener()
	defer h.stream.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", map[string]string{"status": "connected"})

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, "log", event)
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
