package handlers

import (
	"log/slog"
	"net/http"

	"github.com/kozaktomas/visagium/internal/constants"
	"github.com/kozaktomas/visagium/internal/database"
	"github.com/kozaktomas/visagium/internal/engine"
	"github.com/kozaktomas/visagium/internal/extractor"
)

// RecognizeHandler runs recognition cycles on uploaded frames
type RecognizeHandler struct {
	engine    *engine.Engine
	extractor extractor.Extractor
}

// NewRecognizeHandler creates a new recognize handler
func NewRecognizeHandler(eng *engine.Engine, ex extractor.Extractor) *RecognizeHandler {
	return &RecognizeHandler{engine: eng, extractor: ex}
}

// RecognizeResponse is the result of one recognition cycle
type RecognizeResponse struct {
	Width  int                 `json:"width"`
	Height int                 `json:"height"`
	Faces  []engine.FaceResult `json:"faces"`
}

// Recognize matches every face of the frame and marks attendance
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	res, ok := h.extract(w, r)
	if !ok {
		return
	}

	faces, err := h.engine.Recognize(r.Context(), res.Width, res.Detections)
	if err != nil {
		slog.Error("recognition cycle failed", "error", err)
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, RecognizeResponse{Width: res.Width, Height: res.Height, Faces: faces})
}

// IdentifyFace lists candidate identities for one detected face
type IdentifyFace struct {
	BBox       []float64           `json:"bbox"`
	Candidates []database.Neighbor `json:"candidates"`
}

// Identify lists the nearest identities for every face without marking attendance
func (h *RecognizeHandler) Identify(w http.ResponseWriter, r *http.Request) {
	top := intQuery(r, "top", constants.DefaultNeighborCount, 50)

	res, ok := h.extract(w, r)
	if !ok {
		return
	}

	faces := make([]IdentifyFace, 0, len(res.Detections))
	for _, det := range res.Detections {
		candidates := h.engine.Neighbors(r.Context(), det.Encoding, top)
		if candidates == nil {
			candidates = []database.Neighbor{}
		}
		faces = append(faces, IdentifyFace{BBox: det.BBox, Candidates: candidates})
	}
	respondJSON(w, http.StatusOK, map[string]any{"faces": faces})
}

func (h *RecognizeHandler) extract(w http.ResponseWriter, r *http.Request) (*extractor.Result, bool) {
	frame, err := readFrame(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	res, err := h.extractor.Extract(r.Context(), frame)
	if err != nil {
		slog.Error("feature extraction failed", "error", err)
		respondError(w, http.StatusBadGateway, "feature extraction failed")
		return nil, false
	}
	return res, true
}
