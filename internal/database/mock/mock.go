// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/kozaktomas/visagium/internal/database"
	"github.com/kozaktomas/visagium/internal/facematch"
)

// MockEncodingStore is an in-memory database.EncodingWriter
type MockEncodingStore struct {
	mu      sync.RWMutex
	records []facematch.Record

	// Track calls
	AppendCalls  [][]facematch.Record
	RemoveCalls  []string
	ReplaceCalls int

	// Error injection
	AppendError  error
	RemoveError  error
	ReplaceError error

	// SkipRemove makes RemoveIdentity report zero removed rows without
	// touching the data, simulating a store that lost the rows.
	SkipRemove bool
}

// NewMockEncodingStore creates a store preloaded with records
func NewMockEncodingStore(records ...facematch.Record) *MockEncodingStore {
	return &MockEncodingStore{records: database.CloneRecords(records)}
}

// Records returns a copy of the stored records
func (m *MockEncodingStore) Records() []facematch.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return database.CloneRecords(m.records)
}

// Len returns the number of stored records
func (m *MockEncodingStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Append adds records unless AppendError is set
func (m *MockEncodingStore) Append(ctx context.Context, records []facematch.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls = append(m.AppendCalls, database.CloneRecords(records))
	if m.AppendError != nil {
		return m.AppendError
	}
	m.records = append(m.records, database.CloneRecords(records)...)
	return nil
}

// RemoveIdentity removes every record of identityID unless RemoveError is set
func (m *MockEncodingStore) RemoveIdentity(ctx context.Context, identityID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemoveCalls = append(m.RemoveCalls, identityID)
	if m.RemoveError != nil {
		return 0, m.RemoveError
	}
	if m.SkipRemove {
		return 0, nil
	}
	before := len(m.records)
	m.records = slices.DeleteFunc(m.records, func(r facematch.Record) bool {
		return r.ID == identityID
	})
	return before - len(m.records), nil
}

// Replace swaps the content unless ReplaceError is set
func (m *MockEncodingStore) Replace(ctx context.Context, records []facematch.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplaceCalls++
	if m.ReplaceError != nil {
		return m.ReplaceError
	}
	next := database.CloneRecords(records)
	if err := database.ValidateRecords(next); err != nil {
		return err
	}
	m.records = next
	return nil
}

// MockLedger is an in-memory database.LedgerWriter
type MockLedger struct {
	mu      sync.RWMutex
	records []database.AttendanceRecord

	// Error injection
	AppendError error
	ReplayError error
	RecentError error
}

// NewMockLedger creates a ledger preloaded with records
func NewMockLedger(records ...database.AttendanceRecord) *MockLedger {
	return &MockLedger{records: slices.Clone(records)}
}

// All returns every appended record in order
func (m *MockLedger) All() []database.AttendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.records)
}

// Append adds a record unless AppendError is set
func (m *MockLedger) Append(ctx context.Context, rec database.AttendanceRecord) error {
	if m.AppendError != nil {
		return m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Replay calls fn for every record
func (m *MockLedger) Replay(ctx context.Context, fn func(database.AttendanceRecord) error) error {
	if m.ReplayError != nil {
		return m.ReplayError
	}
	for _, rec := range m.All() {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// Recent returns up to limit records, newest first
func (m *MockLedger) Recent(ctx context.Context, limit int) ([]database.AttendanceRecord, error) {
	if m.RecentError != nil {
		return nil, m.RecentError
	}
	all := m.All()
	slices.Reverse(all)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
