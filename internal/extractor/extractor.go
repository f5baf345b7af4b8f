// Package extractor turns frames into face detections by calling an external
// face-embedding server.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/visagium/internal/constants"
	"github.com/kozaktomas/visagium/internal/facematch"
	"github.com/kozaktomas/visagium/internal/metrics"
)

const (
	defaultURL    = "http://localhost:8000"
	facesEndpoint = "/embed/face"
)

// Extractor computes face detections for one frame.
type Extractor interface {
	Extract(ctx context.Context, frame []byte) (*Result, error)
}

// Result is the extraction output for one frame. Width and Height describe the
// image the bounding boxes refer to, which is the downscaled one when the
// input exceeded the maximum size.
type Result struct {
	Detections []facematch.Detection
	Width      int
	Height     int
	Model      string
	Image      []byte
}

// faceDetection represents a single detected face
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// faceResponse represents the response from the face embedding endpoint
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Client calls the embedding server over HTTP.
type Client struct {
	baseURL  string
	client   *http.Client
	maxSize  int
	recorder metrics.Recorder
}

// NewClient creates a new extractor client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultURL
	}
	if timeout <= 0 {
		timeout = constants.DefaultExtractTimeout
	}
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		maxSize:  constants.MaxImageSize,
		recorder: metrics.Nop{},
	}
}

// SetRecorder sets the metrics sink for extraction latency.
func (c *Client) SetRecorder(r metrics.Recorder) {
	if r != nil {
		c.recorder = r
	}
}

// Extract downscales the frame if needed and returns every face the server found.
func (c *Client) Extract(ctx context.Context, frame []byte) (*Result, error) {
	data, err := ResizeImage(frame, c.maxSize)
	if err != nil {
		return nil, err
	}
	width, height, err := Dimensions(data)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	body, err := c.postMultipartImage(ctx, facesEndpoint, data)
	c.recorder.RecordExtractLatency(time.Since(start))
	if err != nil {
		return nil, err
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	result := &Result{
		Width:      width,
		Height:     height,
		Model:      resp.Model,
		Image:      data,
		Detections: make([]facematch.Detection, 0, len(resp.Faces)),
	}
	for _, f := range resp.Faces {
		if len(f.Embedding) == 0 {
			continue
		}
		result.Detections = append(result.Detections, facematch.Detection{
			BBox:     f.BBox,
			Encoding: facematch.Encoding(f.Embedding),
			Score:    f.DetScore,
		})
	}
	return result, nil
}

// postMultipartImage posts the image as the "file" form field with an explicit
// Content-Type detected from magic bytes.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extractor error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	return "application/octet-stream"
}
