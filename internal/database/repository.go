package database

import (
	"context"
	"errors"

	"github.com/kozaktomas/visagium/internal/facematch"
)

// ErrStoreCorruption is returned when persisted encodings are inconsistent.
var ErrStoreCorruption = errors.New("encoding store is corrupted")

// EncodingReader provides read-only access to the enrolled encodings.
// Implementations hold the whole store in memory and hand out copies.
type EncodingReader interface {
	// Records returns a snapshot of every stored encoding in insertion order
	Records() []facematch.Record
	// Len returns the number of stored encodings
	Len() int
}

// EncodingWriter mutates the encoding store. Every mutation is persisted
// before it becomes visible; on error the in-memory state is unchanged.
type EncodingWriter interface {
	EncodingReader

	// Append adds records at the end of the store
	Append(ctx context.Context, records []facematch.Record) error
	// RemoveIdentity deletes every record of the identity and returns how many were removed
	RemoveIdentity(ctx context.Context, identityID string) (int, error)
}

// EncodingReplacer is implemented by stores that can swap their whole
// content in one step.
type EncodingReplacer interface {
	Replace(ctx context.Context, records []facematch.Record) error
}

// NearestSearcher is implemented by stores that rank encodings by distance
// on their own side. Results are closest first, one distance per record.
type NearestSearcher interface {
	Nearest(ctx context.Context, query facematch.Encoding, limit int) ([]facematch.Record, []float64, error)
}

// LedgerReader reads the attendance ledger.
type LedgerReader interface {
	// Replay calls fn for every well-formed record in ledger order
	Replay(ctx context.Context, fn func(AttendanceRecord) error) error
	// Recent returns up to limit records, newest first
	Recent(ctx context.Context, limit int) ([]AttendanceRecord, error)
}

// LedgerWriter appends to the attendance ledger.
type LedgerWriter interface {
	LedgerReader

	// Append durably adds one record
	Append(ctx context.Context, rec AttendanceRecord) error
}
