// Package facematch resolves face encodings to enrolled identities and guards
// enrollment against faces that are already known.
package facematch

// Encoding is a fixed-length face feature vector produced by the extractor.
type Encoding []float32

// Clone returns a copy that does not share the backing array.
func (e Encoding) Clone() Encoding {
	if e == nil {
		return nil
	}
	out := make(Encoding, len(e))
	copy(out, e)
	return out
}

// Identity is an enrolled person.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Record is one stored encoding together with the identity it belongs to.
type Record struct {
	Identity
	Encoding Encoding `json:"encoding"`
}

// Detection is one face found in a frame. BBox is [x1, y1, x2, y2] in pixels.
type Detection struct {
	BBox     []float64 `json:"bbox"`
	Encoding Encoding  `json:"-"`
	Score    float64   `json:"det_score"`
}

// Mode selects how distances are turned into a decision.
type Mode string

const (
	// ModeNearest compares the single nearest encoding against an explicit tolerance.
	ModeNearest Mode = "nearest"
	// ModeAny asks whether any stored encoding compares within the fixed
	// compare-faces tolerance.
	ModeAny Mode = "any"
)
