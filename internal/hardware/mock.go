package hardware

import (
	"context"
	"sync"
)

// MockSensor is an in-memory FingerprintSensor for development machines
// without the AS608 attached (MOCK_HARDWARE=true).
type MockSensor struct {
	mu        sync.Mutex
	enrolled  map[int]bool
	nextMatch *MatchResult
	nextErr   error
}

func NewMockSensor() *MockSensor {
	return &MockSensor{enrolled: make(map[int]bool)}
}

func (m *MockSensor) Available() bool { return true }

// SetNextResult programs the outcome of the next Verify call.
func (m *MockSensor) SetNextResult(res *MatchResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextMatch, m.nextErr = res, err
}

func (m *MockSensor) Verify(ctx context.Context) (*MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nextErr != nil {
		return nil, m.nextErr
	}
	if m.nextMatch != nil {
		return m.nextMatch, nil
	}
	return nil, ErrNoMatch
}

func (m *MockSensor) Enroll(ctx context.Context, templateID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrolled[templateID] = true
	return nil
}

func (m *MockSensor) DeleteTemplate(ctx context.Context, templateID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.enrolled, templateID)
	return nil
}

var _ FingerprintSensor = (*MockSensor)(nil)
