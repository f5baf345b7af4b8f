package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kozaktomas/visagium/internal/constants"
	"github.com/kozaktomas/visagium/internal/database"
	"github.com/kozaktomas/visagium/internal/facematch"
)

// Outcome is the result of a mark-attendance attempt.
type Outcome string

// Outcome constants.
const (
	OutcomeAccepted         Outcome = "accepted"
	OutcomeOutsideWindow    Outcome = "rejected_outside_window"
	OutcomeDuplicateSession Outcome = "rejected_duplicate_session"
	OutcomeSyncFailure      Outcome = "rejected_sync_failure"
)

// Decision describes what happened to one mark attempt. Timestamp is set
// only for accepted marks.
type Decision struct {
	facematch.Identity
	Outcome   Outcome    `json:"outcome"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// Accepted reports whether the mark was recorded.
func (d Decision) Accepted() bool {
	return d.Outcome == OutcomeAccepted
}

// Mark records attendance for an identity if the session policy allows it.
// Rejections are reported through the Decision; the error is non-nil only
// for invalid input or when the ledger could not be written after the
// remote store accepted the record.
func (e *Engine) Mark(ctx context.Context, id facematch.Identity) (Decision, error) {
	id.ID, id.Name = strings.TrimSpace(id.ID), strings.TrimSpace(id.Name)
	if id.ID == "" {
		return Decision{Identity: id}, fmt.Errorf("%w: identity id is required", ErrValidation)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mark(ctx, id)
}

func (e *Engine) mark(ctx context.Context, id facematch.Identity) (Decision, error) {
	now := e.now().Truncate(time.Second)
	d := Decision{Identity: id}

	if !e.policy.InWindow(now) {
		d.Outcome = OutcomeOutsideWindow
		d.Reason = "outside attendance hours (" + e.policy.Describe() + ")"
		e.record(d)
		return d, nil
	}

	if last, ok := e.lastSeen[id.ID]; ok && e.policy.AlreadyRecorded(last, now) {
		d.Outcome = OutcomeDuplicateSession
		d.Reason = "already recorded at " + last.Format(constants.TimestampLayout)
		e.record(d)
		return d, nil
	}

	if e.gateway != nil {
		if err := e.gateway.SendAttendance(ctx, id.ID, id.Name, now); err != nil {
			e.metrics.RecordSyncFailure("attendance")
			e.log.Error("failed to send attendance to remote store", "id", id.ID, "name", id.Name, "error", err)
			d.Outcome = OutcomeSyncFailure
			d.Reason = fmt.Errorf("%w: %w", ErrSyncFailure, err).Error()
			e.record(d)
			return d, nil
		}
	}

	rec := database.AttendanceRecord{IdentityID: id.ID, IdentityName: id.Name, Timestamp: now}
	if err := e.ledger.Append(ctx, rec); err != nil {
		e.log.Error("attendance accepted remotely but not written to the ledger",
			"id", id.ID, "name", id.Name, "timestamp", now.Format(constants.TimestampLayout), "error", err)
		d.Reason = "ledger write failed"
		return d, fmt.Errorf("append attendance ledger: %w", err)
	}

	e.lastSeen[id.ID] = now
	d.Outcome = OutcomeAccepted
	d.Timestamp = &now
	e.record(d)
	return d, nil
}

func (e *Engine) record(d Decision) {
	e.metrics.RecordDecision(string(d.Outcome))
	attrs := []any{"id", d.ID, "name", d.Name, "outcome", d.Outcome}
	if d.Accepted() {
		e.log.Info("attendance recorded", append(attrs, "timestamp", d.Timestamp.Format(constants.TimestampLayout))...)
		return
	}
	e.log.Debug("attendance not recorded", append(attrs, "reason", d.Reason)...)
}

// FaceResult is the outcome of one detected face in a recognition cycle.
type FaceResult struct {
	BBox     []float64           `json:"bbox"`
	Label    string              `json:"label"`
	Identity *facematch.Identity `json:"identity,omitempty"`
	Distance *float64            `json:"distance,omitempty"`
	Skipped  bool                `json:"skipped,omitempty"`
	Decision *Decision           `json:"decision,omitempty"`
}

// Recognize runs one recognition cycle over every detection of a frame.
// Faces narrower than the minimum size are skipped. Each matched identity
// is marked. frameWidth may be 0 when unknown.
func (e *Engine) Recognize(ctx context.Context, frameWidth int, detections []facematch.Detection) ([]FaceResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	records := e.store.Records()
	results := make([]FaceResult, 0, len(detections))
	var errs []error

	for _, det := range detections {
		res := FaceResult{BBox: det.BBox, Label: constants.UnknownLabel}
		if !facematch.IsLargeEnough(det.BBox, frameWidth) {
			res.Skipped = true
			results = append(results, res)
			continue
		}

		m, ok := e.matcher.Match(det.Encoding, records)
		e.metrics.RecordMatch(ok)
		if !math.IsInf(m.Distance, 0) && len(records) > 0 {
			dist := m.Distance
			res.Distance = &dist
		}
		res.Label = facematch.Label(m, ok)
		if !ok {
			results = append(results, res)
			continue
		}

		identity := m.Identity
		res.Identity = &identity
		d, err := e.mark(ctx, identity)
		if err != nil {
			errs = append(errs, err)
		}
		res.Decision = &d
		results = append(results, res)
	}

	return results, errors.Join(errs...)
}
