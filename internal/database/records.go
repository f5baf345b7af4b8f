package database

import (
	"fmt"

	"github.com/kozaktomas/visagium/internal/facematch"
)

// CloneRecords deep-copies records so callers cannot alias stored encodings.
func CloneRecords(records []facematch.Record) []facematch.Record {
	out := make([]facematch.Record, len(records))
	for i, r := range records {
		out[i] = facematch.Record{Identity: r.Identity, Encoding: r.Encoding.Clone()}
	}
	return out
}

// ValidateRecords checks the store invariants: non-empty ids and names, one
// name per id and a single encoding length.
func ValidateRecords(records []facematch.Record) error {
	names := make(map[string]string)
	dim := -1
	for i, r := range records {
		if r.ID == "" || r.Name == "" {
			return fmt.Errorf("%w: record %d has an empty id or name", ErrStoreCorruption, i)
		}
		if name, ok := names[r.ID]; ok && name != r.Name {
			return fmt.Errorf("%w: id %s is stored under names %q and %q", ErrStoreCorruption, r.ID, name, r.Name)
		}
		names[r.ID] = r.Name
		if len(r.Encoding) == 0 {
			return fmt.Errorf("%w: record %d has an empty encoding", ErrStoreCorruption, i)
		}
		if dim >= 0 && len(r.Encoding) != dim {
			return fmt.Errorf("%w: record %d has %d dimensions, expected %d", ErrStoreCorruption, i, len(r.Encoding), dim)
		}
		dim = len(r.Encoding)
	}
	return nil
}

// FromLegacy converts parallel sequences into records. Sequences of
// different length cannot be paired and are reported as corruption.
func FromLegacy(exp LegacyExport) ([]facematch.Record, error) {
	if len(exp.Encodings) != len(exp.Names) || len(exp.Names) != len(exp.IDs) {
		return nil, fmt.Errorf("%w: %d encodings, %d names, %d ids",
			ErrStoreCorruption, len(exp.Encodings), len(exp.Names), len(exp.IDs))
	}
	records := make([]facematch.Record, len(exp.IDs))
	for i := range exp.IDs {
		records[i] = facematch.Record{
			Identity: facematch.Identity{ID: exp.IDs[i], Name: exp.Names[i]},
			Encoding: facematch.Encoding(exp.Encodings[i]).Clone(),
		}
	}
	if err := ValidateRecords(records); err != nil {
		return nil, err
	}
	return records, nil
}

// Summarize groups records by identity in order of first appearance.
func Summarize(records []facematch.Record) []IdentitySummary {
	var out []IdentitySummary
	pos := make(map[string]int)
	for _, r := range records {
		if i, ok := pos[r.ID]; ok {
			out[i].Encodings++
			continue
		}
		pos[r.ID] = len(out)
		out = append(out, IdentitySummary{Identity: r.Identity, Encodings: 1})
	}
	return out
}

// HasID reports whether any record belongs to id.
func HasID(records []facematch.Record, id string) bool {
	for _, r := range records {
		if r.ID == id {
			return true
		}
	}
	return false
}

// HasName reports whether any record carries name.
func HasName(records []facematch.Record, name string) bool {
	for _, r := range records {
		if r.Name == name {
			return true
		}
	}
	return false
}

// NameOf returns the name stored for id.
func NameOf(records []facematch.Record, id string) (string, bool) {
	for _, r := range records {
		if r.ID == id {
			return r.Name, true
		}
	}
	return "", false
}
