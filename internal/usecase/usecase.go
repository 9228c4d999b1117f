// Package usecase holds the gateway's business logic: submitting circuits
// to the C12 simulator, reading the local ledger and watching jobs until
// they finish.
package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/c12qe/c12sim-go/internal/api"
	"github.com/c12qe/c12sim-go/internal/domain"
)

// Simulator is the part of the C12 API client the gateway uses.
type Simulator interface {
	StartJob(ctx context.Context, req domain.StartJobRequest) (string, string, error)
	GetJobStatus(ctx context.Context, jobID string) (domain.JobStatus, error)
	GetJobResult(ctx context.Context, jobID string, opts api.PollOptions) (*domain.JobResult, error)
	GetBackends(ctx context.Context) ([]domain.BackendInfo, error)
}

var _ Simulator = (*api.Client)(nil)

// Enqueuer hands a job id to the watchers.
type Enqueuer interface {
	Enqueue(ctx context.Context, id uuid.UUID) error
}

// resultOutputData is requested when a terminal result is fetched.
var resultOutputData = domain.JoinResultKinds(domain.AllResultKinds...)
