package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/visagium/internal/engine"
	"github.com/kozaktomas/visagium/internal/facematch"
	"github.com/kozaktomas/visagium/internal/logger"
)

func createRegistration(t *testing.T, h *RegistrationsHandler, body string) (int, RegistrationResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest("POST", "/api/v1/registrations", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		return rec.Code, RegistrationResponse{}
	}
	return rec.Code, decode[RegistrationResponse](t, rec)
}

func postFrame(h *RegistrationsHandler, regID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/v1/registrations/"+regID+"/frames", bytes.NewReader(testFrame))
	req = requestWithChiParams(req, map[string]string{"regId": regID})
	rec := httptest.NewRecorder()
	h.Capture(rec, req)
	return rec
}

func TestRegistrationsHandler_Flow(t *testing.T) {
	deps := newTestEngine(t, record("9", "Zoe", 5, 5))
	ex := &fakeExtractor{detections: []facematch.Detection{detection(0, 0)}}
	h := NewRegistrationsHandler(deps.engine, ex, NewRegistrationManager())

	code, created := createRegistration(t, h, `{"id":"1","name":"Ana"}`)
	if code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}
	if created.RegistrationID == "" || created.State != engine.StateCapturing || created.Required != 2 {
		t.Errorf("unexpected registration %+v", created)
	}

	rec := postFrame(h, created.RegistrationID)
	if rec.Code != http.StatusOK {
		t.Fatalf("first frame status = %d: %s", rec.Code, rec.Body.String())
	}
	if p := decode[RegistrationResponse](t, rec); p.Count != 1 {
		t.Errorf("count = %d, want 1", p.Count)
	}

	rec = postFrame(h, created.RegistrationID)
	p := decode[RegistrationResponse](t, rec)
	if p.State != engine.StateCommitted {
		t.Errorf("state = %s, want committed", p.State)
	}
	if deps.store.Len() != 3 {
		t.Errorf("store len = %d, want 3", deps.store.Len())
	}

	rec = httptest.NewRecorder()
	h.Get(rec, requestWithChiParams(httptest.NewRequest("GET", "/", nil), map[string]string{"regId": created.RegistrationID}))
	if got := decode[RegistrationResponse](t, rec); got.State != engine.StateCommitted {
		t.Errorf("GET state = %s", got.State)
	}

	if rec := postFrame(h, created.RegistrationID); rec.Code != http.StatusConflict {
		t.Errorf("frame after commit status = %d, want 409", rec.Code)
	}
}

func TestRegistrationsHandler_CaptureErrors(t *testing.T) {
	tests := []struct {
		name       string
		detections []facematch.Detection
		want       int
	}{
		{"no face", nil, http.StatusUnprocessableEntity},
		{"two faces", []facematch.Detection{detection(1, 1), detection(2, 2)}, http.StatusUnprocessableEntity},
		{"duplicate", []facematch.Detection{detection(5, 5.1)}, http.StatusConflict},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps := newTestEngine(t, record("9", "Zoe", 5, 5))
			h := NewRegistrationsHandler(deps.engine, &fakeExtractor{detections: tc.detections}, NewRegistrationManager())
			_, created := createRegistration(t, h, `{"id":"1","name":"Ana"}`)

			rec := postFrame(h, created.RegistrationID)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
			if p := decode[RegistrationResponse](t, rec); p.Error == "" {
				t.Error("expected error message in response")
			}
		})
	}
}

func TestRegistrationsHandler_CreateErrors(t *testing.T) {
	deps := newTestEngine(t)
	h := NewRegistrationsHandler(deps.engine, &fakeExtractor{}, NewRegistrationManager())

	if code, _ := createRegistration(t, h, `not json`); code != http.StatusBadRequest {
		t.Errorf("invalid body status = %d", code)
	}
	if code, _ := createRegistration(t, h, `{"id":"","name":"Ana"}`); code != http.StatusBadRequest {
		t.Errorf("missing id status = %d", code)
	}
	if code, _ := createRegistration(t, h, `{"id":"1","name":"Ana"}`); code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}
	if code, _ := createRegistration(t, h, `{"id":"2","name":"Bob"}`); code != http.StatusConflict {
		t.Errorf("second active registration status = %d, want 409", code)
	}
}

func TestRegistrationsHandler_Cancel(t *testing.T) {
	deps := newTestEngine(t)
	h := NewRegistrationsHandler(deps.engine, &fakeExtractor{}, NewRegistrationManager())
	_, created := createRegistration(t, h, `{"id":"1","name":"Ana"}`)

	cancel := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.Cancel(rec, requestWithChiParams(httptest.NewRequest("DELETE", "/", nil), map[string]string{"regId": created.RegistrationID}))
		return rec
	}

	rec := cancel()
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", rec.Code)
	}
	if p := decode[RegistrationResponse](t, rec); p.State != engine.StateCancelled {
		t.Errorf("state = %s", p.State)
	}
	if rec := cancel(); rec.Code != http.StatusConflict {
		t.Errorf("second cancel status = %d, want 409", rec.Code)
	}
}

func TestRegistrationsHandler_NotFound(t *testing.T) {
	deps := newTestEngine(t)
	h := NewRegistrationsHandler(deps.engine, &fakeExtractor{}, NewRegistrationManager())

	if rec := postFrame(h, "missing"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestEventsHandler_Stream(t *testing.T) {
	stream := logger.NewStream(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := NewEventsHandler(stream)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/v1/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.Stream(rec, req)
		close(done)
	}()

	// Wait for the listener to be registered before logging.
	deadline := time.Now().Add(time.Second)
	for stream.ListenerCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	slog.New(stream).Info("attendance recorded", "id", "1")
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	if !strings.Contains(body, "event: status") || !strings.Contains(body, "event: log") {
		t.Errorf("unexpected stream %q", body)
	}
	if !strings.Contains(body, "attendance recorded") {
		t.Errorf("log message missing from stream %q", body)
	}
}

func TestEventsHandler_NoStream(t *testing.T) {
	rec := httptest.NewRecorder()
	NewEventsHandler(nil).Stream(rec, httptest.NewRequest("GET", "/api/v1/events", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRegistrationsHandler_ListAndIdleTakeover(t *testing.T) {
	deps := newTestEngine(t)
	ex := &fakeExtractor{detections: []facematch.Detection{detection(0, 0)}}
	h := NewRegistrationsHandler(deps.engine, ex, NewRegistrationManager())

	_, abandoned := createRegistration(t, h, `{"id":"1","name":"Ana"}`)
	if rec := postFrame(h, abandoned.RegistrationID); rec.Code != http.StatusOK {
		t.Fatalf("frame status = %d: %s", rec.Code, rec.Body.String())
	}

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest("GET", "/api/v1/registrations", nil))
	list := decode[[]RegistrationResponse](t, rec)
	if len(list) != 1 || list[0].RegistrationID != abandoned.RegistrationID || list[0].State != engine.StateCapturing {
		t.Fatalf("List() = %+v", list)
	}

	if code, _ := createRegistration(t, h, `{"id":"2","name":"Bo"}`); code != http.StatusConflict {
		t.Fatalf("create while another is capturing status = %d, want 409", code)
	}

	*deps.now = deps.now.Add(6 * time.Minute)
	code, fresh := createRegistration(t, h, `{"id":"2","name":"Bo"}`)
	if code != http.StatusCreated {
		t.Fatalf("create after idle timeout status = %d, want 201", code)
	}

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest("GET", "/api/v1/registrations", nil))
	list = decode[[]RegistrationResponse](t, rec)
	if len(list) != 1 || list[0].RegistrationID != fresh.RegistrationID {
		t.Errorf("expired registration must be forgotten, got %+v", list)
	}

	rec = httptest.NewRecorder()
	h.Get(rec, requestWithChiParams(httptest.NewRequest("GET", "/", nil), map[string]string{"regId": abandoned.RegistrationID}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET expired registration status = %d, want 404", rec.Code)
	}
}
