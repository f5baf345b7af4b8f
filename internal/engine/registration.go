package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/visagium/internal/database"
	"github.com/kozaktomas/visagium/internal/facematch"
)

// State is the lifecycle state of a registration.
type State string

// State constants. Idle is reported when no registration is active.
const (
	StateIdle       State = "idle"
	StateCapturing  State = "capturing"
	StateDuplicate  State = "duplicate"
	StateCommitting State = "committing"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolled_back"
	StateCancelled  State = "cancelled"
	StateExpired    State = "expired"
)

// Terminal reports whether no further captures are accepted.
func (s State) Terminal() bool {
	switch s {
	case StateDuplicate, StateCommitted, StateRolledBack, StateCancelled, StateExpired:
		return true
	}
	return false
}

// Progress is a snapshot of a registration.
type Progress struct {
	facematch.Identity
	State    State `json:"state"`
	Count    int   `json:"count"`
	Required int   `json:"required"`
}

// Registration enrolls one identity from a series of single-face captures.
// All methods go through the engine mutex.
type Registration struct {
	engine   *Engine
	identity facematch.Identity
	required int

	state    State
	count    int
	captures []facematch.Encoding
	staged   []string
	lastUsed time.Time
}

// NewRegistration starts capturing for an identity. Only one registration
// can be active at a time.
func (e *Engine) NewRegistration(id, name string) (*Registration, error) {
	id, name, err := cleanInput(id, name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.expireIdle()
	if e.active != nil {
		return nil, fmt.Errorf("%w: %s", ErrRegistrationActive, e.active.identity.ID)
	}
	if stored, ok := database.NameOf(e.store.Records(), id); ok && stored != name {
		return nil, fmt.Errorf("%w: id %s is already enrolled as %q", ErrValidation, id, stored)
	}

	r := &Registration{
		engine:   e,
		identity: facematch.Identity{ID: id, Name: name},
		required: e.captureCount,
		state:    StateCapturing,
		lastUsed: e.now(),
	}
	e.active = r
	e.log.Info("registration started", "id", id, "name", name, "captures", r.required)
	return r, nil
}

// RegistrationState returns the state of the active registration, or idle.
func (e *Engine) RegistrationState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return StateIdle
	}
	return e.active.state
}

// Identity returns the identity being enrolled.
func (r *Registration) Identity() facematch.Identity {
	return r.identity
}

// Progress returns the current state and capture count.
func (r *Registration) Progress() Progress {
	r.engine.mu.Lock()
	defer r.engine.mu.Unlock()
	return r.progress()
}

func (r *Registration) progress() Progress {
	return Progress{Identity: r.identity, State: r.state, Count: r.count, Required: r.required}
}

// Capture feeds one frame and its detections. Frames without exactly one face
// are skipped with ErrNoFaceDetected or ErrMultipleFacesDetected and do not
// count. A face that is already enrolled aborts the registration with
// ErrDuplicateFace. The capture that reaches the required count commits.
func (r *Registration) Capture(ctx context.Context, frame []byte, detections []facematch.Detection) (Progress, error) {
	e := r.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	if r.state != StateCapturing {
		return r.progress(), fmt.Errorf("%w: state %s", ErrRegistrationClosed, r.state)
	}
	r.lastUsed = e.now()

	switch {
	case len(detections) == 0 || len(detections[0].Encoding) == 0:
		e.log.Warn("no face detected, capture skipped", "id", r.identity.ID)
		return r.progress(), ErrNoFaceDetected
	case len(detections) > 1:
		e.log.Warn("multiple faces detected, capture skipped", "id", r.identity.ID, "faces", len(detections))
		return r.progress(), fmt.Errorf("%w: %d faces", ErrMultipleFacesDetected, len(detections))
	}

	encoding := detections[0].Encoding.Clone()
	records := e.store.Records()
	if err := r.checkDimension(encoding, records); err != nil {
		return r.progress(), err
	}

	n := len(r.captures) + 1
	if e.artifacts != nil && len(frame) > 0 {
		path, err := e.artifacts.Stage(r.identity.ID, r.identity.Name, n, frame)
		if err != nil {
			e.log.Error("failed to stage enrollment photo", "id", r.identity.ID, "error", err)
			return r.progress(), fmt.Errorf("stage capture %d: %w", n, err)
		}
		r.staged = append(r.staged, path)
	}

	if dup, dist := e.guard.IsDuplicate(encoding, records); dup {
		idx, _ := facematch.Nearest(encoding, records)
		e.log.Warn("face is already registered, registration aborted",
			"id", r.identity.ID, "name", r.identity.Name,
			"matched_id", records[idx].ID, "matched_name", records[idx].Name, "distance", dist)
		r.discard()
		r.finish(StateDuplicate)
		e.metrics.RecordEnrollment(string(StateDuplicate))
		return r.progress(), fmt.Errorf("%w: distance %.4f to %s", ErrDuplicateFace, dist, facematch.DisplayLabel(records[idx].Identity))
	}

	r.captures = append(r.captures, encoding)
	r.count = len(r.captures)
	e.log.Info("capture accepted", "id", r.identity.ID, "count", r.count, "required", r.required)

	if r.count < r.required {
		return r.progress(), nil
	}
	err := r.commit(ctx)
	return r.progress(), err
}

func (r *Registration) checkDimension(encoding facematch.Encoding, records []facematch.Record) error {
	want := storeDim(records)
	if want == 0 && len(r.captures) > 0 {
		want = len(r.captures[0])
	}
	if want > 0 && len(encoding) != want {
		return fmt.Errorf("%w: encoding has %d dimensions, store uses %d", ErrValidation, len(encoding), want)
	}
	return nil
}

// commit runs with the engine mutex held.
func (r *Registration) commit(ctx context.Context) error {
	e := r.engine
	r.state = StateCommitting

	if e.gateway != nil {
		if err := e.gateway.RegisterEmployee(ctx, r.identity.ID, r.identity.Name); err != nil {
			e.metrics.RecordSyncFailure("register")
			e.log.Error("remote registration failed, registration rolled back",
				"id", r.identity.ID, "name", r.identity.Name, "error", err)
			r.discard()
			r.finish(StateRolledBack)
			e.metrics.RecordEnrollment(string(StateRolledBack))
			return fmt.Errorf("%w: %w", ErrSyncFailure, err)
		}
	}

	records := make([]facematch.Record, len(r.captures))
	for i, enc := range r.captures {
		records[i] = facematch.Record{Identity: r.identity, Encoding: enc}
	}
	if err := e.store.Append(ctx, records); err != nil {
		e.log.Error("failed to persist encodings", "id", r.identity.ID, "error", err)
		if e.gateway != nil {
			if derr := e.gateway.DeleteEmployee(ctx, r.identity.ID); derr != nil {
				e.metrics.RecordSyncFailure("compensate")
				e.log.Error("compensating remote delete failed", "id", r.identity.ID, "error", derr)
			}
		}
		r.discard()
		r.finish(StateRolledBack)
		e.metrics.RecordEnrollment(string(StateRolledBack))
		return fmt.Errorf("persist encodings: %w", err)
	}

	e.rebuildIndex()
	r.captures = nil
	r.staged = nil
	r.finish(StateCommitted)
	e.metrics.RecordEnrollment(string(StateCommitted))
	e.log.Info("registration committed", "id", r.identity.ID, "name", r.identity.Name, "encodings", r.count)
	return nil
}

// Cancel abandons the registration and discards everything captured so far.
func (r *Registration) Cancel() error {
	e := r.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	if r.state != StateCapturing {
		return fmt.Errorf("%w: state %s", ErrRegistrationClosed, r.state)
	}
	r.discard()
	r.finish(StateCancelled)
	e.metrics.RecordEnrollment(string(StateCancelled))
	e.log.Info("registration cancelled", "id", r.identity.ID)
	return nil
}

// expireIdle ends the active registration when it has not received a
// capture for longer than the idle timeout. Callers hold the engine mutex.
func (e *Engine) expireIdle() {
	r := e.active
	if r == nil || r.state != StateCapturing {
		return
	}
	idle := e.now().Sub(r.lastUsed)
	if idle < e.idleTimeout {
		return
	}
	r.discard()
	r.finish(StateExpired)
	e.metrics.RecordEnrollment(string(StateExpired))
	e.log.Warn("idle registration expired", "id", r.identity.ID, "idle", idle.Round(time.Second).String())
}

// discard drops captured encodings and staged photos.
func (r *Registration) discard() {
	r.captures = nil
	if r.engine.artifacts == nil || len(r.staged) == 0 {
		return
	}
	if err := r.engine.artifacts.Discard(r.identity.ID, r.staged); err != nil {
		r.engine.log.Warn("failed to discard staged photos", "id", r.identity.ID, "error", err)
	}
	r.staged = nil
}

func (r *Registration) finish(s State) {
	r.state = s
	if r.engine.active == r {
		r.engine.active = nil
	}
}
