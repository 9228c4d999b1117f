package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/c12qe/c12sim-go/internal/domain"
)

// JobRepository is the gateway's ledger of submitted jobs.
// Implementations must be safe for concurrent use.
type JobRepository interface {
	// Create inserts a new job.
	Create(ctx context.Context, job *domain.LocalJob) error

	// GetByID retrieves a job by its UUID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LocalJob, error)

	// List returns jobs, newest first.
	List(ctx context.Context, limit, offset int) ([]*domain.LocalJob, error)

	// ListPending returns the ids of jobs that have not reached a terminal state.
	ListPending(ctx context.Context) ([]uuid.UUID, error)

	// UpdateStatus moves a job forward. A backwards move returns
	// domain.ErrInvalidTransition; repeating the current status is a no-op.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus) error

	// SetResult records the terminal outcome of a job.
	SetResult(ctx context.Context, id uuid.UUID, outcome *domain.JobOutcome) error
}

// ResultCache keeps terminal result payloads close to the gateway and
// guards against two watchers polling the same job.
type ResultCache interface {
	// Get returns the cached payload and whether it was present.
	Get(ctx context.Context, id uuid.UUID) (json.RawMessage, bool, error)

	// Put stores a terminal payload.
	Put(ctx context.Context, id uuid.UUID, payload json.RawMessage) error

	// AcquireWatch takes the watch lock for a job on behalf of owner.
	// Returns true if the lock was acquired, false if another watcher holds it.
	AcquireWatch(ctx context.Context, id uuid.UUID, owner string) (bool, error)

	// ExtendWatch pushes the lock expiry back while owner still holds it.
	// Returns false once the lock has expired or moved to another owner.
	ExtendWatch(ctx context.Context, id uuid.UUID, owner string) (bool, error)

	// ReleaseWatch releases the watch lock if owner still holds it.
	ReleaseWatch(ctx context.Context, id uuid.UUID, owner string) error
}
