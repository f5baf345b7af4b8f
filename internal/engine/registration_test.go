package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/kozaktomas/visagium/internal/facematch"
)

var frame = []byte{0xFF, 0xD8, 0xFF, 0xE0, 'j', 'p', 'e', 'g'}

func captureN(t *testing.T, r *Registration, n int) (Progress, error) {
	t.Helper()
	var (
		p   Progress
		err error
	)
	for i := range n {
		p, err = r.Capture(context.Background(), frame, []facematch.Detection{face(3, 3, float32(i)*0.01)})
		if err != nil {
			return p, err
		}
	}
	return p, nil
}

func TestRegistration_Commit(t *testing.T) {
	env := newTestEnv(t, withGateway(), withRecords(record("9", "Zoe", 0, 0, 0)))

	r, err := env.engine.NewRegistration(" 42 ", " Jan Novák ")
	if err != nil {
		t.Fatalf("NewRegistration() error = %v", err)
	}
	if env.engine.RegistrationState() != StateCapturing {
		t.Errorf("state = %s, want capturing", env.engine.RegistrationState())
	}

	p, err := captureN(t, r, 2)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if p.Count != 2 || p.State != StateCapturing || env.store.Len() != 1 {
		t.Fatalf("store must not change before the last capture: %+v, len %d", p, env.store.Len())
	}

	p, err = r.Capture(context.Background(), frame, []facematch.Detection{face(3, 3, 0.5)})
	if err != nil {
		t.Fatalf("final Capture() error = %v", err)
	}
	if p.State != StateCommitted || p.Count != 3 || p.Required != 3 {
		t.Errorf("unexpected progress %+v", p)
	}
	if env.engine.RegistrationState() != StateIdle {
		t.Errorf("engine state = %s, want idle", env.engine.RegistrationState())
	}

	records := env.store.Records()
	if len(records) != 4 {
		t.Fatalf("store has %d records, want 4", len(records))
	}
	for _, rec := range records[1:] {
		if rec.ID != "42" || rec.Name != "Jan Novák" {
			t.Errorf("unexpected record identity %+v", rec.Identity)
		}
	}

	calls := env.gateway.CallsOf("register")
	if len(calls) != 1 || calls[0].ID != "42" {
		t.Errorf("unexpected register calls %+v", calls)
	}

	photos, err := env.artifacts.List("42")
	if err != nil || len(photos) != 3 {
		t.Errorf("expected 3 staged photos, got %v (err %v)", photos, err)
	}
	if _, err := os.Stat(filepath.Join(env.dataset, "42", "jan_novak_3.jpg")); err != nil {
		t.Errorf("expected third photo: %v", err)
	}

	if _, err := r.Capture(context.Background(), frame, []facematch.Detection{face(3, 3, 3)}); !errors.Is(err, ErrRegistrationClosed) {
		t.Errorf("capture after commit error = %v, want ErrRegistrationClosed", err)
	}
}

func TestRegistration_SkipsInvalidFrames(t *testing.T) {
	env := newTestEnv(t)
	r, _ := env.engine.NewRegistration("1", "Ana")
	ctx := context.Background()

	if _, err := r.Capture(ctx, frame, nil); !errors.Is(err, ErrNoFaceDetected) {
		t.Errorf("zero faces error = %v", err)
	}
	two := []facematch.Detection{face(1, 1, 1), face(2, 2, 2)}
	if _, err := r.Capture(ctx, frame, two); !errors.Is(err, ErrMultipleFacesDetected) {
		t.Errorf("two faces error = %v", err)
	}

	p := r.Progress()
	if p.Count != 0 || p.State != StateCapturing {
		t.Errorf("skipped frames must not count: %+v", p)
	}
	if photos, _ := env.artifacts.List("1"); len(photos) != 0 {
		t.Errorf("skipped frames must not be staged: %v", photos)
	}
}

func TestRegistration_DimensionMismatch(t *testing.T) {
	env := newTestEnv(t, withRecords(record("9", "Zoe", 0, 0, 0)))
	r, _ := env.engine.NewRegistration("1", "Ana")

	_, err := r.Capture(context.Background(), frame, []facematch.Detection{face(1, 1)})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestRegistration_DuplicateAborts(t *testing.T) {
	env := newTestEnv(t, withRecords(record("9", "Zoe", 0, 0, 0)))
	before := env.store.Records()

	r, _ := env.engine.NewRegistration("1", "Ana")
	if _, err := captureN(t, r, 1); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	p, err := r.Capture(context.Background(), frame, []facematch.Detection{face(0.1, 0, 0)})
	if !errors.Is(err, ErrDuplicateFace) {
		t.Fatalf("expected ErrDuplicateFace, got %v", err)
	}
	if p.State != StateDuplicate {
		t.Errorf("state = %s, want duplicate", p.State)
	}
	if !reflect.DeepEqual(before, env.store.Records()) {
		t.Error("duplicate must not mutate the store")
	}
	if _, err := os.Stat(filepath.Join(env.dataset, "1")); !errors.Is(err, os.ErrNotExist) {
		t.Error("staged photos must be discarded")
	}

	if _, err := env.engine.NewRegistration("1", "Ana"); err != nil {
		t.Errorf("a new registration should be possible after a duplicate: %v", err)
	}
}

func TestRegistration_RemoteFailureRollsBack(t *testing.T) {
	env := newTestEnv(t, withGateway(), withRecords(record("9", "Zoe", 0, 0, 0)))
	env.gateway.RegisterError = errors.New("status 500")
	before := env.store.Records()

	r, _ := env.engine.NewRegistration("1", "Ana")
	p, err := captureN(t, r, 3)
	if !errors.Is(err, ErrSyncFailure) {
		t.Fatalf("expected ErrSyncFailure, got %v", err)
	}
	if p.State != StateRolledBack {
		t.Errorf("state = %s, want rolled_back", p.State)
	}
	if !reflect.DeepEqual(before, env.store.Records()) {
		t.Error("store must be identical after a remote failure")
	}
	if len(env.store.AppendCalls) != 0 {
		t.Error("store must not be written after a remote failure")
	}
	if _, err := os.Stat(filepath.Join(env.dataset, "1")); !errors.Is(err, os.ErrNotExist) {
		t.Error("staged photos must be discarded")
	}
	if env.engine.RegistrationState() != StateIdle {
		t.Error("engine should return to idle")
	}
}

func TestRegistration_PersistFailureCompensates(t *testing.T) {
	env := newTestEnv(t, withGateway())
	env.store.AppendError = errors.New("read-only file system")

	r, _ := env.engine.NewRegistration("1", "Ana")
	p, err := captureN(t, r, 3)
	if err == nil || errors.Is(err, ErrSyncFailure) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if p.State != StateRolledBack {
		t.Errorf("state = %s, want rolled_back", p.State)
	}
	if calls := env.gateway.CallsOf("delete"); len(calls) != 1 || calls[0].ID != "1" {
		t.Errorf("expected compensating delete, got %+v", calls)
	}
}

func TestRegistration_Cancel(t *testing.T) {
	env := newTestEnv(t)
	r, _ := env.engine.NewRegistration("1", "Ana")
	if _, err := captureN(t, r, 2); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	if err := r.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if r.Progress().State != StateCancelled {
		t.Errorf("state = %s, want cancelled", r.Progress().State)
	}
	if env.store.Len() != 0 {
		t.Error("cancel must not write the store")
	}
	if photos, _ := env.artifacts.List("1"); len(photos) != 0 {
		t.Errorf("cancel must discard staged photos: %v", photos)
	}
	if err := r.Cancel(); !errors.Is(err, ErrRegistrationClosed) {
		t.Errorf("second Cancel() error = %v", err)
	}
	if _, err := captureN(t, r, 1); !errors.Is(err, ErrRegistrationClosed) {
		t.Errorf("capture after cancel error = %v", err)
	}
}

func TestNewRegistration_Validation(t *testing.T) {
	env := newTestEnv(t, withRecords(record("7", "Eva", 0, 0, 0)))

	tests := []struct {
		name     string
		id       string
		personNm string
		want     error
	}{
		{"empty id", "", "Ana", ErrValidation},
		{"blank name", "1", "   ", ErrValidation},
		{"path in id", "../1", "Ana", ErrValidation},
		{"id enrolled under another name", "7", "Ana", ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.engine.NewRegistration(tc.id, tc.personNm); !errors.Is(err, tc.want) {
				t.Errorf("NewRegistration() error = %v, want %v", err, tc.want)
			}
			if env.engine.RegistrationState() != StateIdle {
				t.Error("failed validation must stay idle")
			}
		})
	}
}

func TestNewRegistration_OnlyOneActive(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.engine.NewRegistration("1", "Ana"); err != nil {
		t.Fatalf("NewRegistration() error = %v", err)
	}
	if _, err := env.engine.NewRegistration("2", "Bob"); !errors.Is(err, ErrRegistrationActive) {
		t.Errorf("expected ErrRegistrationActive, got %v", err)
	}
}

func TestRegistration_ReenrollmentKeepsCommittedPhotos(t *testing.T) {
	env := newTestEnv(t)

	r, _ := env.engine.NewRegistration("42", "Jan")
	if _, err := captureN(t, r, 3); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	committed, err := env.artifacts.List("42")
	if err != nil || len(committed) != 3 {
		t.Fatalf("expected 3 committed photos, got %v (err %v)", committed, err)
	}

	again, err := env.engine.NewRegistration("42", "Jan")
	if err != nil {
		t.Fatalf("second NewRegistration() error = %v", err)
	}
	if _, err := again.Capture(context.Background(), frame, []facematch.Detection{face(9, 9, 9)}); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if err := again.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	photos, err := env.artifacts.List("42")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !reflect.DeepEqual(photos, committed) {
		t.Errorf("photos after cancelled re-enrollment = %v, want %v", photos, committed)
	}
}

func TestRegistration_DuplicateReenrollmentKeepsCommittedPhotos(t *testing.T) {
	env := newTestEnv(t)

	r, _ := env.engine.NewRegistration("42", "Jan")
	if _, err := captureN(t, r, 3); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	committed, _ := env.artifacts.List("42")

	again, _ := env.engine.NewRegistration("42", "Jan")
	if _, err := captureN(t, again, 1); !errors.Is(err, ErrDuplicateFace) {
		t.Fatalf("expected ErrDuplicateFace, got %v", err)
	}
	if photos, _ := env.artifacts.List("42"); !reflect.DeepEqual(photos, committed) {
		t.Errorf("photos after duplicate re-enrollment = %v, want %v", photos, committed)
	}
}

func TestNewRegistration_ExpiresIdleRegistration(t *testing.T) {
	env := newTestEnv(t)

	stale, err := env.engine.NewRegistration("1", "Ana")
	if err != nil {
		t.Fatalf("NewRegistration() error = %v", err)
	}
	if _, err := captureN(t, stale, 1); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	env.clock.Set(9, 4)
	if _, err := env.engine.NewRegistration("2", "Bob"); !errors.Is(err, ErrRegistrationActive) {
		t.Fatalf("registration idle for 4m must still block, got %v", err)
	}

	env.clock.Set(9, 5)
	fresh, err := env.engine.NewRegistration("2", "Bob")
	if err != nil {
		t.Fatalf("NewRegistration() after idle timeout error = %v", err)
	}
	if fresh.Identity().ID != "2" {
		t.Errorf("unexpected identity %+v", fresh.Identity())
	}
	if p := stale.Progress(); p.State != StateExpired {
		t.Errorf("stale state = %s, want expired", p.State)
	}
	if photos, _ := env.artifacts.List("1"); len(photos) != 0 {
		t.Errorf("expired registration must discard staged photos: %v", photos)
	}
	if _, err := captureN(t, stale, 1); !errors.Is(err, ErrRegistrationClosed) {
		t.Errorf("capture on expired registration error = %v", err)
	}
}

func TestRegistration_CaptureKeepsRegistrationAlive(t *testing.T) {
	env := newTestEnv(t)

	r, _ := env.engine.NewRegistration("1", "Ana")
	env.clock.Set(9, 4)
	if _, err := captureN(t, r, 1); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	env.clock.Set(9, 8)
	if _, err := env.engine.NewRegistration("2", "Bob"); !errors.Is(err, ErrRegistrationActive) {
		t.Errorf("registration captured 4m ago must still block, got %v", err)
	}
	if r.Progress().State != StateCapturing {
		t.Errorf("state = %s, want capturing", r.Progress().State)
	}
}
