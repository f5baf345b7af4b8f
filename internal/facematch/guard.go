package facematch

import "github.com/kozaktomas/visagium/internal/constants"

// Guard decides whether a new capture belongs to someone already enrolled.
type Guard struct {
	Strategy  Mode
	Threshold float64
}

// NewGuard returns a guard, defaulting an unset strategy to nearest.
func NewGuard(strategy Mode, threshold float64) Guard {
	if strategy == "" {
		strategy = ModeNearest
	}
	if threshold <= 0 {
		threshold = constants.DefaultDuplicateThreshold
	}
	return Guard{Strategy: strategy, Threshold: threshold}
}

// IsDuplicate reports whether candidate is close to any stored encoding and
// returns the nearest distance measured. An empty store never duplicates.
func (g Guard) IsDuplicate(candidate Encoding, records []Record) (bool, float64) {
	idx, dist := Nearest(candidate, records)
	if idx < 0 {
		return false, dist
	}
	if g.Strategy == ModeAny {
		return dist <= constants.CompareFacesTolerance, dist
	}
	return dist < g.Threshold, dist
}
