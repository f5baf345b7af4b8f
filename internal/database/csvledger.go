package database

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kozaktomas/visagium/internal/constants"
)

// CSVLedger is an append-only attendance ledger stored as CSV rows of
// id, name, local timestamp and its UTC offset. The offset keeps the
// repeated hour of a DST fall-back unambiguous; rows without one are read
// in the ledger location.
type CSVLedger struct {
	path     string
	location *time.Location
	mu       sync.Mutex
}

// OpenCSVLedger opens the ledger at path, writing the header when the file
// does not exist yet. Timestamps are written and parsed in loc.
func OpenCSVLedger(path string, loc *time.Location) (*CSVLedger, error) {
	if loc == nil {
		loc = time.Local
	}
	l := &CSVLedger{path: path, location: loc}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
		if err := l.appendRow([]string{ledgerHeaderID, ledgerHeaderName, ledgerHeaderTime, ledgerHeaderOffset}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("checking ledger: %w", err)
	}
	return l, nil
}

// Path returns the ledger file.
func (l *CSVLedger) Path() string {
	return l.path
}

func (l *CSVLedger) Append(ctx context.Context, rec AttendanceRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := rec.Timestamp.In(l.location)
	return l.appendRow([]string{
		rec.IdentityID,
		rec.IdentityName,
		ts.Format(constants.TimestampLayout),
		ts.Format(constants.OffsetLayout),
	})
}

func (l *CSVLedger) appendRow(row []string) error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		f.Close()
		return fmt.Errorf("writing ledger row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flushing ledger: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing ledger: %w", err)
	}
	return nil
}

// Replay reads every row in file order. Rows with fewer than three columns
// or an unparsable timestamp, including the header, are skipped.
func (l *CSVLedger) Replay(ctx context.Context, fn func(AttendanceRecord) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading ledger: %w", err)
		}
		if len(row) < constants.LedgerColumns {
			continue
		}
		ts, err := l.parseTimestamp(row)
		if err != nil {
			continue
		}
		if err := fn(AttendanceRecord{IdentityID: row[0], IdentityName: row[1], Timestamp: ts}); err != nil {
			return err
		}
	}
}

// parseTimestamp reads the timestamp of a row, honoring the offset column
// when present and valid.
func (l *CSVLedger) parseTimestamp(row []string) (time.Time, error) {
	if len(row) > constants.LedgerColumns {
		layout := constants.TimestampLayout + " " + constants.OffsetLayout
		if ts, err := time.Parse(layout, row[2]+" "+row[3]); err == nil {
			return ts.In(l.location), nil
		}
	}
	return time.ParseInLocation(constants.TimestampLayout, row[2], l.location)
}

func (l *CSVLedger) Recent(ctx context.Context, limit int) ([]AttendanceRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	ring := make([]AttendanceRecord, 0, limit)
	next := 0
	err := l.Replay(ctx, func(rec AttendanceRecord) error {
		if len(ring) < limit {
			ring = append(ring, rec)
			return nil
		}
		ring[next] = rec
		next = (next + 1) % limit
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]AttendanceRecord, 0, len(ring))
	for i := range len(ring) {
		// walk backwards from the newest entry
		idx := (next - 1 - i + 2*len(ring)) % len(ring)
		out = append(out, ring[idx])
	}
	return out, nil
}
