package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/api"
	"github.com/c12qe/c12sim-go/internal/domain"
	"github.com/c12qe/c12sim-go/internal/metrics"
	"github.com/c12qe/c12sim-go/internal/publisher"
	"github.com/c12qe/c12sim-go/internal/repository"
)

// WatchOptions control how often a watched job is polled. Zero Timeout waits forever.
type WatchOptions struct {
	PollWait time.Duration
	Timeout  time.Duration
}

// WatchJobUsecase follows one job until it is terminal, then records its
// outcome, caches the result and announces it.
type WatchJobUsecase struct {
	client    Simulator
	repo      repository.JobRepository
	cache     repository.ResultCache
	publisher publisher.Publisher
	opts      WatchOptions
	logger    *zap.Logger
}

// NewWatchJobUsecase creates a new WatchJobUsecase.
func NewWatchJobUsecase(
	client Simulator,
	repo repository.JobRepository,
	cache repository.ResultCache,
	pub publisher.Publisher,
	opts WatchOptions,
	logger *zap.Logger,
) *WatchJobUsecase {
	if opts.PollWait <= 0 {
		opts.PollWait = api.DefaultPollWait
	}
	return &WatchJobUsecase{
		client:    client,
		repo:      repo,
		cache:     cache,
		publisher: pub,
		opts:      opts,
		logger:    logger,
	}
}

// Execute watches a job: watch lock → poll → ledger → cache → event.
// Returns (alreadyWatched, error).
func (uc *WatchJobUsecase) Execute(ctx context.Context, id uuid.UUID) (bool, error) {
	owner := uuid.NewString()
	acquired, err := uc.cache.AcquireWatch(ctx, id, owner)
	if err != nil {
		uc.logger.Error("Failed to acquire watch lock", zap.Error(err), zap.String("job_id", id.String()))
		return false, err
	}
	if !acquired {
		uc.logger.Info("Job already watched, skipping", zap.String("job_id", id.String()))
		return true, nil
	}
	defer func() {
		if err := uc.cache.ReleaseWatch(context.WithoutCancel(ctx), id, owner); err != nil {
			uc.logger.Warn("Failed to release watch lock", zap.Error(err), zap.String("job_id", id.String()))
		}
	}()

	job, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get job: %w", err)
	}
	if job.Status.IsTerminal() {
		return false, nil
	}

	if err := uc.poll(ctx, job, owner); err != nil {
		if errors.Is(err, errWatchLost) {
			uc.logger.Warn("Watch lock lost, leaving job to its new watcher", zap.String("job_id", id.String()))
			return true, nil
		}
		return false, err
	}

	res, err := uc.client.GetJobResult(ctx, id.String(), api.PollOptions{OutputData: resultOutputData, Wait: api.DefaultPollWait})
	if err != nil {
		return false, fmt.Errorf("fetch result: %w", err)
	}
	status, err := res.JobStatus()
	if err != nil {
		return false, err
	}

	outcome := &domain.JobOutcome{Status: status, Errors: res.ErrorText()}
	if status == domain.StatusFinished {
		outcome.Result = res.Results
	}
	if err := uc.repo.SetResult(ctx, id, outcome); err != nil {
		uc.logger.Error("Failed to store outcome", zap.Error(err), zap.String("job_id", id.String()))
		return false, err
	}

	if len(outcome.Result) > 0 {
		if err := uc.cache.Put(ctx, id, outcome.Result); err != nil {
			uc.logger.Warn("Result cache write failed", zap.Error(err), zap.String("job_id", id.String()))
		}
	}

	event := &domain.JobEvent{
		JobID:       id,
		BackendName: job.BackendName,
		Status:      status,
		Errors:      outcome.Errors,
		OccurredAt:  time.Now().UTC(),
	}
	if err := uc.publisher.Publish(ctx, event); err != nil {
		uc.logger.Warn("Failed to publish job event", zap.Error(err), zap.String("job_id", id.String()))
	}

	metrics.JobsCompletedTotal.WithLabelValues(string(status)).Inc()
	uc.logger.Info("Job reached a terminal state",
		zap.String("job_id", id.String()),
		zap.String("status", string(status)),
	)
	return false, nil
}

var errWatchLost = errors.New("watch lock lost")

// poll blocks until the simulator reports a terminal status, recording
// intermediate statuses in the ledger and extending the watch lock on every
// tick. Only transient API failures are retried.
func (uc *WatchJobUsecase) poll(ctx context.Context, job *domain.LocalJob, owner string) error {
	start := time.Now()
	current := job.Status
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		held, err := uc.cache.ExtendWatch(ctx, job.JobID, owner)
		if err != nil {
			return fmt.Errorf("extend watch: %w", err)
		}
		if !held {
			return errWatchLost
		}

		status, err := uc.client.GetJobStatus(ctx, job.JobID.String())
		switch {
		case domain.IsTransient(err):
			uc.logger.Warn("Status poll failed, retrying", zap.Error(err), zap.String("job_id", job.JobID.String()))
		case err != nil:
			return fmt.Errorf("poll status: %w", err)
		case status.IsTerminal():
			return nil
		case status != current:
			if err := uc.repo.UpdateStatus(ctx, job.JobID, status); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
				return fmt.Errorf("update status: %w", err)
			}
			current = status
		}

		if uc.opts.Timeout > 0 && time.Since(start) >= uc.opts.Timeout {
			return fmt.Errorf("%w: job %s still %s", domain.ErrTimeout, job.JobID, current)
		}
		timer.Reset(uc.opts.PollWait)
	}
}
