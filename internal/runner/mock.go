package runner

import (
	"context"
	"sync"
)

// Mock is an in-memory Runner for tests and the dry-run CLI path. It records
// every start request and can be told to reject handoffs.
type Mock struct {
	mu       sync.Mutex
	started  []StartRequest
	FailWith error
}

// Start records the request, or returns FailWith when set.
func (m *Mock) Start(_ context.Context, req StartRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.started = append(m.started, req)
	return nil
}

// Started returns a copy of all recorded start requests.
func (m *Mock) Started() []StartRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StartRequest, len(m.started))
	copy(out, m.started)
	return out
}
