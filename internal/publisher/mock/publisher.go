package mock

import (
	"context"
	"sync"

	"github.com/c12qe/c12sim-go/internal/domain"
	"github.com/c12qe/c12sim-go/internal/publisher"
)

// Ensure MockPublisher implements publisher.Publisher.
var _ publisher.Publisher = (*MockPublisher)(nil)

// MockPublisher is a mock event publisher for testing.
type MockPublisher struct {
	mu        sync.Mutex
	Published []*domain.JobEvent
	PublishFn func(ctx context.Context, event *domain.JobEvent) error
	PingErr   error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, event *domain.JobEvent) error {
	if m.PublishFn != nil {
		return m.PublishFn(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, event)
	return nil
}

// Events returns a copy of the published events.
func (m *MockPublisher) Events() []*domain.JobEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.JobEvent(nil), m.Published...)
}

func (m *MockPublisher) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockPublisher) Close() error {
	return nil
}
