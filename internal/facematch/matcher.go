package facematch

import "github.com/kozaktomas/visagium/internal/constants"

// Match is the identity a query encoding resolved to.
type Match struct {
	Index    int      `json:"-"`
	Identity Identity `json:"identity"`
	Distance float64  `json:"distance"`
}

// Matcher resolves a query encoding against the enrolled records.
type Matcher struct {
	Mode      Mode
	Tolerance float64
}

// NewMatcher returns a matcher, defaulting an unset mode to nearest.
func NewMatcher(mode Mode, tolerance float64) Matcher {
	if mode == "" {
		mode = ModeNearest
	}
	if tolerance <= 0 {
		tolerance = constants.DefaultMatchTolerance
	}
	return Matcher{Mode: mode, Tolerance: tolerance}
}

// Threshold is the distance the decision is made against.
func (m Matcher) Threshold() float64 {
	if m.Mode == ModeAny {
		return constants.CompareFacesTolerance
	}
	return m.Tolerance
}

// Match returns the nearest identity when it is close enough.
// In nearest mode the distance must be strictly below the tolerance; in any
// mode a stored encoding within the compare-faces tolerance is enough and
// the nearest identity is reported.
func (m Matcher) Match(query Encoding, records []Record) (Match, bool) {
	idx, dist := Nearest(query, records)
	if idx < 0 {
		return Match{}, false
	}
	if !m.accepts(dist) {
		return Match{Index: idx, Distance: dist}, false
	}
	return Match{Index: idx, Identity: records[idx].Identity, Distance: dist}, true
}

func (m Matcher) accepts(dist float64) bool {
	if m.Mode == ModeAny {
		return dist <= constants.CompareFacesTolerance
	}
	return dist < m.Tolerance
}
