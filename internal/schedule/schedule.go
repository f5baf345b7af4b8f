// Package schedule decides when attendance may be recorded and whether an
// identity has already been recorded for the current session.
package schedule

import (
	"fmt"
	"time"

	"github.com/kozaktomas/visagium/internal/config"
)

// Policy is consulted for every recognized identity.
type Policy interface {
	// InWindow reports whether attendance may be recorded at t.
	InWindow(t time.Time) bool
	// AlreadyRecorded reports whether a record at last makes a new record
	// at now redundant.
	AlreadyRecorded(last, now time.Time) bool
	// Gated reports whether InWindow can ever be false.
	Gated() bool
	// Describe renders the policy for logs and the config endpoint.
	Describe() string
}

// Window is a half-open hour range [Start, End) of a day.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether hour h is inside the window.
func (w Window) Contains(h int) bool {
	return w.Start <= h && h < w.End
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:00-%02d:00", w.Start, w.End)
}

// WindowPolicy allows one record per identity per window per day.
type WindowPolicy struct {
	Windows  []Window
	Location *time.Location
}

// NewWindowPolicy returns a window policy evaluated in loc (local time if nil).
func NewWindowPolicy(windows []Window, loc *time.Location) *WindowPolicy {
	if loc == nil {
		loc = time.Local
	}
	return &WindowPolicy{Windows: windows, Location: loc}
}

// WindowFor returns the index of the first window containing t, or -1.
func (p *WindowPolicy) WindowFor(t time.Time) int {
	h := t.In(p.Location).Hour()
	for i, w := range p.Windows {
		if w.Contains(h) {
			return i
		}
	}
	return -1
}

func (p *WindowPolicy) InWindow(t time.Time) bool {
	return p.WindowFor(t) >= 0
}

// SameWindow reports whether one window contains the hours of both t1 and t2
// and both fall on the same calendar day.
func (p *WindowPolicy) SameWindow(t1, t2 time.Time) bool {
	a, b := t1.In(p.Location), t2.In(p.Location)
	if a.Year() != b.Year() || a.YearDay() != b.YearDay() {
		return false
	}
	for _, w := range p.Windows {
		if w.Contains(a.Hour()) && w.Contains(b.Hour()) {
			return true
		}
	}
	return false
}

func (p *WindowPolicy) AlreadyRecorded(last, now time.Time) bool {
	return p.SameWindow(last, now)
}

func (p *WindowPolicy) Gated() bool { return true }

func (p *WindowPolicy) Describe() string {
	s := "window"
	for i, w := range p.Windows {
		if i == 0 {
			s += " "
		} else {
			s += ","
		}
		s += w.String()
	}
	return s
}

// CooldownPolicy allows a record at any hour once the cooldown since the
// previous record has elapsed.
type CooldownPolicy struct {
	Cooldown time.Duration
}

func (p *CooldownPolicy) InWindow(time.Time) bool { return true }

func (p *CooldownPolicy) AlreadyRecorded(last, now time.Time) bool {
	return now.Sub(last) < p.Cooldown
}

func (p *CooldownPolicy) Gated() bool { return false }

func (p *CooldownPolicy) Describe() string {
	return "cooldown " + p.Cooldown.String()
}

// FromConfig builds the policy selected by a validated schedule config.
func FromConfig(sc config.ScheduleConfig) (Policy, error) {
	switch sc.Policy {
	case config.PolicyWindow:
		windows := make([]Window, len(sc.Windows))
		for i, w := range sc.Windows {
			windows[i] = Window{Start: w.Start, End: w.End}
		}
		return NewWindowPolicy(windows, sc.Location), nil
	case config.PolicyCooldown:
		return &CooldownPolicy{Cooldown: sc.Cooldown}, nil
	default:
		return nil, fmt.Errorf("unknown schedule policy %q", sc.Policy)
	}
}
