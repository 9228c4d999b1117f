package qlm

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/c12qe/c12sim-go/internal/api"
	"github.com/c12qe/c12sim-go/internal/domain"
	"github.com/c12qe/c12sim-go/internal/job"
)

// AsyncQPU starts jobs without waiting for them.
type AsyncQPU struct {
	handler
}

// NewAsyncQPU selects a backend the same way NewQPU does.
func NewAsyncQPU(ctx context.Context, client Client, name string, poll api.PollOptions, logger *zap.Logger) (*AsyncQPU, error) {
	h, err := newHandler(ctx, client, name, poll, logger)
	if err != nil {
		return nil, err
	}
	return &AsyncQPU{handler: h}, nil
}

// SubmitJob starts a single job.
func (a *AsyncQPU) SubmitJob(ctx context.Context, j Job) (*AsyncJob, error) {
	return a.Submit(ctx, Batch{Jobs: []Job{j}})
}

// Submit starts every job of the batch and returns a handle on all of them.
func (a *AsyncQPU) Submit(ctx context.Context, batch Batch) (*AsyncJob, error) {
	if len(batch.Jobs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", domain.ErrInvalidArgument)
	}
	aj := &AsyncJob{handler: a.handler, batch: batch}
	for i, j := range batch.Jobs {
		started, err := a.start(ctx, j)
		if err != nil {
			return nil, fmt.Errorf("batch job %d: %w", i, err)
		}
		aj.jobs = append(aj.jobs, started)
	}
	return aj, nil
}

// RetrieveJob rebuilds an AsyncJob from a file written by AsyncJob.Dump.
func (a *AsyncQPU) RetrieveJob(path string) (*AsyncJob, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dumped batch: %w", err)
	}
	var batch Batch
	if err := yaml.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("%w: decode dumped batch: %v", domain.ErrInvalidArgument, err)
	}
	if batch.MetaData == nil || len(batch.MetaData.JobIDs) == 0 {
		return nil, fmt.Errorf("%w: dumped batch carries no job ids", domain.ErrInvalidArgument)
	}
	if len(batch.MetaData.JobIDs) != len(batch.Jobs) {
		return nil, fmt.Errorf("%w: %d job ids for %d jobs", domain.ErrInvalidArgument, len(batch.MetaData.JobIDs), len(batch.Jobs))
	}

	aj := &AsyncJob{handler: a.handler, batch: batch}
	for i, id := range batch.MetaData.JobIDs {
		shots := batch.Jobs[i].NbShots
		if shots == 0 {
			shots = a.backend.MaxShots
		}
		aj.jobs = append(aj.jobs, job.New(a.client, id, a.backend.Name, job.Metadata{
			QASM:        batch.Jobs[i].Circuit,
			Shots:       shots,
			ResultKinds: submitResultKinds,
		}, a.logger))
	}
	return aj, nil
}

// AsyncJob tracks every job started for one batch.
type AsyncJob struct {
	handler
	batch Batch
	jobs  []*job.Job
}

// IDs returns the job uuids in submission order.
func (a *AsyncJob) IDs() []string {
	ids := make([]string, len(a.jobs))
	for i, j := range a.jobs {
		ids[i] = j.ID()
	}
	return ids
}

// Statuses returns the status of every job in submission order.
func (a *AsyncJob) Statuses(ctx context.Context) ([]domain.JobStatus, error) {
	out := make([]domain.JobStatus, len(a.jobs))
	for i, j := range a.jobs {
		status, err := j.Status(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = status
	}
	return out, nil
}

// Status folds the job statuses into one: RUNNING or QUEUED while any job
// is pending, then ERROR, CANCELLED or FINISHED.
func (a *AsyncJob) Status(ctx context.Context) (domain.JobStatus, error) {
	statuses, err := a.Statuses(ctx)
	if err != nil {
		return "", err
	}
	seen := make(map[domain.JobStatus]bool, len(statuses))
	for _, s := range statuses {
		seen[s] = true
	}
	for _, s := range []domain.JobStatus{domain.StatusRunning, domain.StatusQueued, domain.StatusError, domain.StatusCancelled} {
		if seen[s] {
			return s, nil
		}
	}
	return domain.StatusFinished, nil
}

// Result returns nil until every job is terminal, then one result per job
// in submission order, including empty ones for failed or cancelled jobs.
func (a *AsyncJob) Result(ctx context.Context) (*BatchResult, error) {
	statuses, err := a.Statuses(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range statuses {
		if !s.IsTerminal() {
			return nil, nil
		}
	}

	out := &BatchResult{Results: make([]*Result, 0, len(a.jobs))}
	for _, j := range a.jobs {
		res, err := a.collectOutcome(ctx, j)
		if err != nil {
			return nil, err
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}

// Cancel is not supported by the simulator and always returns false.
func (a *AsyncJob) Cancel() bool {
	a.logger.Info("Unable to cancel job", zap.Strings("job_ids", a.IDs()))
	return false
}

// Dump writes the batch and its job ids to path as YAML so the job can be
// picked up later with AsyncQPU.RetrieveJob.
func (a *AsyncJob) Dump(path string) error {
	batch := a.batch
	batch.MetaData = &BatchMeta{Backend: a.backend.Name, JobIDs: a.IDs()}
	raw, err := yaml.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}
