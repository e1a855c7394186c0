package messaging

import (
	"context"
	"sync"
)

// MockMessageSender records every report it is given. Setting Err makes
// subsequent sends fail.
type MockMessageSender struct {
	mu      sync.Mutex
	reports []*ExecutionReport
	closed  bool
	Err     error
}

// NewMockMessageSender creates a new MockMessageSender.
func NewMockMessageSender() *MockMessageSender {
	return &MockMessageSender{}
}

// SendReport records the report
func (m *MockMessageSender) SendReport(_ context.Context, report *ExecutionReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.reports = append(m.reports, report)
	return nil
}

// Reports returns a copy of everything recorded so far
func (m *MockMessageSender) Reports() []*ExecutionReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ExecutionReport, len(m.reports))
	copy(out, m.reports)
	return out
}

// Close marks the sender closed.
func (m *MockMessageSender) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called
func (m *MockMessageSender) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Ensure MockMessageSender implements MessageSender
var _ MessageSender = (*MockMessageSender)(nil)
