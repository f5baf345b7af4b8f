package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/visagium/internal/artifacts"
	"github.com/kozaktomas/visagium/internal/config"
	"github.com/kozaktomas/visagium/internal/database/mock"
	"github.com/kozaktomas/visagium/internal/engine"
	"github.com/kozaktomas/visagium/internal/extractor"
	"github.com/kozaktomas/visagium/internal/facematch"
	"github.com/kozaktomas/visagium/internal/schedule"
)

// testFrame is a minimal JPEG header, enough for magic byte detection
var testFrame = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F'}

// fakeExtractor returns a fixed result for every frame
type fakeExtractor struct {
	detections []facematch.Detection
	err        error
	calls      int
}

func (f *fakeExtractor) Extract(ctx context.Context, frame []byte) (*extractor.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &extractor.Result{Detections: f.detections, Width: 640, Height: 480, Image: frame}, nil
}

var errExtractor = errors.New("extractor unavailable")

func detection(enc ...float32) facematch.Detection {
	return facematch.Detection{BBox: []float64{10, 10, 110, 110}, Encoding: enc, Score: 0.9}
}

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Storage:  config.StorageConfig{StoreBackend: config.BackendFile, LedgerBackend: config.BackendFile},
		Schedule: config.ScheduleConfig{Policy: config.PolicyWindow, Timezone: "UTC"},
		Web:      config.WebConfig{FrameRate: 2},
	}
}

type testDeps struct {
	engine *engine.Engine
	store  *mock.MockEncodingStore
	ledger *mock.MockLedger
	now    *time.Time
}

// newTestEngine builds an engine over in-memory mocks at a fixed clock inside
// the 05:00-12:00 window.
func newTestEngine(t *testing.T, records ...facematch.Record) testDeps {
	t.Helper()
	store := mock.NewMockEncodingStore(records...)
	ledger := mock.NewMockLedger()
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	eng, err := engine.New(engine.Options{
		Store:        store,
		Ledger:       ledger,
		Policy:       schedule.NewWindowPolicy([]schedule.Window{{Start: 5, End: 12}}, time.UTC),
		Artifacts:    artifacts.NewStore(t.TempDir()),
		CaptureCount: 2,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:        func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	return testDeps{engine: eng, store: store, ledger: ledger, now: &now}
}

func record(id, name string, enc ...float32) facematch.Record {
	return facematch.Record{Identity: facematch.Identity{ID: id, Name: name}, Encoding: enc}
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
