package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/api"
	"github.com/c12qe/c12sim-go/internal/domain"
	"github.com/c12qe/c12sim-go/internal/repository"
)

// GetJobUsecase reads jobs from the ledger, refreshing pending ones from the simulator.
type GetJobUsecase struct {
	client Simulator
	repo   repository.JobRepository
	cache  repository.ResultCache
	logger *zap.Logger
}

// NewGetJobUsecase creates a new GetJobUsecase.
func NewGetJobUsecase(client Simulator, repo repository.JobRepository, cache repository.ResultCache, logger *zap.Logger) *GetJobUsecase {
	return &GetJobUsecase{
		client: client,
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// Execute returns a job. A pending job has its status refreshed from the
// simulator; terminal statuses are reported but only the watcher records them.
func (uc *GetJobUsecase) Execute(ctx context.Context, id uuid.UUID) (*domain.LocalJob, error) {
	job, err := uc.repo.GetByID(ctx, id)
	if errors.Is(err, domain.ErrJobNotFound) {
		uc.logger.Debug("Job not found", zap.String("job_id", id.String()))
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job.Status.IsTerminal() {
		return job, nil
	}

	status, err := uc.client.GetJobStatus(ctx, id.String())
	if err != nil {
		uc.logger.Warn("Failed to refresh job status", zap.String("job_id", id.String()), zap.Error(err))
		return job, nil
	}
	if status == job.Status || !job.Status.CanTransition(status) {
		return job, nil
	}
	if !status.IsTerminal() {
		if err := uc.repo.UpdateStatus(ctx, id, status); err != nil {
			uc.logger.Warn("Failed to record refreshed status", zap.String("job_id", id.String()), zap.Error(err))
			return job, nil
		}
	}
	job.Status = status
	return job, nil
}

// List returns ledger jobs, newest first.
func (uc *GetJobUsecase) List(ctx context.Context, limit, offset int) ([]*domain.LocalJob, error) {
	if limit <= 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit %d offset %d", domain.ErrInvalidArgument, limit, offset)
	}
	jobs, err := uc.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Result returns the raw result block of a finished job, from the cache,
// the ledger or the simulator in that order.
func (uc *GetJobUsecase) Result(ctx context.Context, id uuid.UUID) (json.RawMessage, error) {
	if payload, ok, err := uc.cache.Get(ctx, id); err != nil {
		uc.logger.Warn("Result cache read failed", zap.String("job_id", id.String()), zap.Error(err))
	} else if ok {
		return payload, nil
	}

	job, err := uc.Execute(ctx, id)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case domain.StatusFinished:
	case domain.StatusError:
		return nil, fmt.Errorf("%w: %s", domain.ErrJobFailed, job.Errors)
	case domain.StatusCancelled:
		return nil, domain.ErrJobCancelled
	default:
		return nil, fmt.Errorf("%w: job is %s", domain.ErrNoResult, job.Status)
	}

	payload := job.Result
	if len(payload) == 0 {
		res, err := uc.client.GetJobResult(ctx, id.String(), api.PollOptions{OutputData: resultOutputData, Wait: api.DefaultPollWait})
		if err != nil {
			return nil, fmt.Errorf("fetch result: %w", err)
		}
		payload = res.Results
	}
	if len(payload) == 0 {
		return nil, domain.ErrNoResult
	}

	if err := uc.cache.Put(ctx, id, payload); err != nil {
		uc.logger.Warn("Result cache write failed", zap.String("job_id", id.String()), zap.Error(err))
	}
	return payload, nil
}
