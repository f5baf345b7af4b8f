package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/visagium/internal/constants"
)

// ErrInvalidEmployeeID is returned when an identity id cannot be sent as an integer employee id.
var ErrInvalidEmployeeID = errors.New("employee id must be an integer")

// Gateway mirrors enrollments, deletions and attendance records to a remote store.
type Gateway interface {
	RegisterEmployee(ctx context.Context, id, name string) error
	DeleteEmployee(ctx context.Context, id string) error
	SendAttendance(ctx context.Context, id, name string, ts time.Time) error
}

const (
	employeeEndpoint   = "/Employee"
	attendanceEndpoint = "/Attendance"
)

type employeeRequest struct {
	EmployeeID int    `json:"employee_id"`
	Name       string `json:"name,omitempty"`
}

type attendanceRequest struct {
	EmployeeID int    `json:"employee_id"`
	Name       string `json:"name"`
	Timestamp  string `json:"timestamp"`
}

// HTTPGateway talks to the remote attendance API. Only 200 OK counts as success.
type HTTPGateway struct {
	baseURL    string
	client     *http.Client
	captureDir string
}

// NewHTTPGateway creates a gateway rooted at baseURL. A zero timeout uses the default.
func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = constants.DefaultSyncTimeout
	}
	return &HTTPGateway{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// SetCaptureDir enables response capturing to the specified directory.
// Pass an empty string to disable capturing.
func (g *HTTPGateway) SetCaptureDir(dir string) error {
	if dir == "" {
		g.captureDir = ""
		return nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("could not create capture directory: %w", err)
	}
	g.captureDir = dir
	return nil
}

// RegisterEmployee creates the employee remotely.
func (g *HTTPGateway) RegisterEmployee(ctx context.Context, id, name string) error {
	employeeID, err := parseEmployeeID(id)
	if err != nil {
		return err
	}
	return g.doRequest(ctx, http.MethodPost, employeeEndpoint, employeeRequest{EmployeeID: employeeID, Name: name})
}

// DeleteEmployee removes the employee remotely.
func (g *HTTPGateway) DeleteEmployee(ctx context.Context, id string) error {
	employeeID, err := parseEmployeeID(id)
	if err != nil {
		return err
	}
	return g.doRequest(ctx, http.MethodDelete, employeeEndpoint, employeeRequest{EmployeeID: employeeID})
}

// SendAttendance posts one attendance record.
func (g *HTTPGateway) SendAttendance(ctx context.Context, id, name string, ts time.Time) error {
	employeeID, err := parseEmployeeID(id)
	if err != nil {
		return err
	}
	return g.doRequest(ctx, http.MethodPost, attendanceEndpoint, attendanceRequest{
		EmployeeID: employeeID,
		Name:       name,
		Timestamp:  ts.Format(constants.TimestampLayout),
	})
}

func parseEmployeeID(id string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidEmployeeID, id)
	}
	return n, nil
}

func (g *HTTPGateway) doRequest(ctx context.Context, method, endpoint string, requestBody any) error {
	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return fmt.Errorf("could not marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		body = []byte("(could not read response body)")
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s failed with status %d: %s", method, endpoint, resp.StatusCode, string(body))
	}

	g.captureResponse(method, endpoint, body)
	return nil
}

// captureResponse saves the response body to a file if capturing is enabled.
func (g *HTTPGateway) captureResponse(method, endpoint string, body []byte) {
	if g.captureDir == "" || len(body) == 0 {
		return
	}

	name := strings.TrimPrefix(strings.ReplaceAll(endpoint, "/", "_"), "_")
	name = fmt.Sprintf("%s_%s_%s.json", strings.ToLower(method), name, time.Now().Format("20060102_150405.000"))
	path := filepath.Join(g.captureDir, name)

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err == nil {
		body = pretty.Bytes()
	}

	if err := os.WriteFile(path, body, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to capture response to %s: %v\n", path, err)
	}
}
