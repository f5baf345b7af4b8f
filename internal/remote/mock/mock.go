// Package mock provides a mock remote.Gateway for testing.
package mock

import (
	"context"
	"sync"
	"time"
)

// Call is one recorded gateway call.
type Call struct {
	Op        string
	ID        string
	Name      string
	Timestamp time.Time
}

// MockGateway records every call and returns the injected errors.
type MockGateway struct {
	mu    sync.Mutex
	calls []Call

	// Error injection
	RegisterError   error
	DeleteError     error
	AttendanceError error
}

// RegisterEmployee records the call and returns RegisterError
func (m *MockGateway) RegisterEmployee(ctx context.Context, id, name string) error {
	m.add(Call{Op: "register", ID: id, Name: name})
	return m.RegisterError
}

// DeleteEmployee records the call and returns DeleteError
func (m *MockGateway) DeleteEmployee(ctx context.Context, id string) error {
	m.add(Call{Op: "delete", ID: id})
	return m.DeleteError
}

// SendAttendance records the call and returns AttendanceError
func (m *MockGateway) SendAttendance(ctx context.Context, id, name string, ts time.Time) error {
	m.add(Call{Op: "attendance", ID: id, Name: name, Timestamp: ts})
	return m.AttendanceError
}

// Calls returns the recorded calls in order
func (m *MockGateway) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsOf returns the recorded calls of one operation
func (m *MockGateway) CallsOf(op string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockGateway) add(c Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}
