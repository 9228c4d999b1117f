package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/c12qe/c12sim-go/internal/domain"
	"github.com/c12qe/c12sim-go/internal/repository"
)

// Ensure mocks implement the repository interfaces.
var (
	_ repository.JobRepository = (*MockJobRepository)(nil)
	_ repository.ResultCache   = (*MockResultCache)(nil)
)

// MockJobRepository is an in-memory mock of the job ledger for testing.
type MockJobRepository struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.LocalJob

	// Hook functions for injecting errors
	CreateFunc       func(ctx context.Context, job *domain.LocalJob) error
	GetByIDFunc      func(ctx context.Context, id uuid.UUID) (*domain.LocalJob, error)
	UpdateStatusFunc func(ctx context.Context, id uuid.UUID, status domain.JobStatus) error
	SetResultFunc    func(ctx context.Context, id uuid.UUID, outcome *domain.JobOutcome) error

	// Recorded status updates, in call order.
	StatusUpdates []domain.JobStatus
}

// NewMockJobRepository creates a new mock repository.
func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{
		jobs: make(map[uuid.UUID]*domain.LocalJob),
	}
}

func (m *MockJobRepository) Create(ctx context.Context, job *domain.LocalJob) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.JobID] = job
	return nil
}

func (m *MockJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.LocalJob, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *MockJobRepository) List(ctx context.Context, limit, offset int) ([]*domain.LocalJob, error) {
	all := m.GetAll()
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return []*domain.LocalJob{}, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *MockJobRepository) ListPending(ctx context.Context) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []uuid.UUID
	for id, job := range m.jobs {
		if !job.Status.IsTerminal() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MockJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if !job.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, job.Status, status)
	}
	job.Status = status
	m.StatusUpdates = append(m.StatusUpdates, status)
	return nil
}

func (m *MockJobRepository) SetResult(ctx context.Context, id uuid.UUID, outcome *domain.JobOutcome) error {
	if m.SetResultFunc != nil {
		return m.SetResultFunc(ctx, id, outcome)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if !job.Status.CanTransition(outcome.Status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, job.Status, outcome.Status)
	}
	job.Status = outcome.Status
	job.Result = outcome.Result
	job.Errors = outcome.Errors
	return nil
}

// GetAll returns copies of all stored jobs (for test assertions).
func (m *MockJobRepository) GetAll() []*domain.LocalJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.LocalJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		cp := *j
		result = append(result, &cp)
	}
	return result
}

// MockResultCache is an in-memory mock of the result cache.
type MockResultCache struct {
	mu       sync.Mutex
	payloads map[uuid.UUID]json.RawMessage
	watching map[uuid.UUID]string

	// Hook functions for injecting errors
	GetFunc          func(ctx context.Context, id uuid.UUID) (json.RawMessage, bool, error)
	PutFunc          func(ctx context.Context, id uuid.UUID, payload json.RawMessage) error
	AcquireWatchFunc func(ctx context.Context, id uuid.UUID, owner string) (bool, error)
	ExtendWatchFunc  func(ctx context.Context, id uuid.UUID, owner string) (bool, error)

	ExtendCalls  int
	ReleaseCalls int
}

// NewMockResultCache creates a new mock cache.
func NewMockResultCache() *MockResultCache {
	return &MockResultCache{
		payloads: make(map[uuid.UUID]json.RawMessage),
		watching: make(map[uuid.UUID]string),
	}
}

func (m *MockResultCache) Get(ctx context.Context, id uuid.UUID) (json.RawMessage, bool, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payloads[id]
	return p, ok, nil
}

func (m *MockResultCache) Put(ctx context.Context, id uuid.UUID, payload json.RawMessage) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, id, payload)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[id] = payload
	return nil
}

func (m *MockResultCache) AcquireWatch(ctx context.Context, id uuid.UUID, owner string) (bool, error) {
	if m.AcquireWatchFunc != nil {
		return m.AcquireWatchFunc(ctx, id, owner)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.watching[id]; held {
		return false, nil
	}
	m.watching[id] = owner
	return true, nil
}

func (m *MockResultCache) ExtendWatch(ctx context.Context, id uuid.UUID, owner string) (bool, error) {
	m.mu.Lock()
	m.ExtendCalls++
	m.mu.Unlock()
	if m.ExtendWatchFunc != nil {
		return m.ExtendWatchFunc(ctx, id, owner)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watching[id] == owner, nil
}

func (m *MockResultCache) ReleaseWatch(ctx context.Context, id uuid.UUID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watching[id] == owner {
		delete(m.watching, id)
	}
	m.ReleaseCalls++
	return nil
}

// SetWatchOwner hands the watch lock of a job to owner, as another gateway would.
func (m *MockResultCache) SetWatchOwner(id uuid.UUID, owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watching[id] = owner
}

// WatchOwner returns the current holder of a job's watch lock.
func (m *MockResultCache) WatchOwner(id uuid.UUID) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.watching[id]
	return owner, ok
}
