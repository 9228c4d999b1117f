// Package job implements the job handle shared by every SDK adapter: status
// caching, polling until a terminal state and result translation.
package job

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/api"
	"github.com/c12qe/c12sim-go/internal/domain"
	"github.com/c12qe/c12sim-go/internal/metrics"
	"github.com/c12qe/c12sim-go/internal/result"
)

// Requester is the part of the API client a job needs.
type Requester interface {
	GetJobStatus(ctx context.Context, jobID string) (domain.JobStatus, error)
	GetJobResult(ctx context.Context, jobID string, opts api.PollOptions) (*domain.JobResult, error)
	GetJob(ctx context.Context, jobID string) (*domain.JobRecord, error)
}

var _ Requester = (*api.Client)(nil)

// Metadata describes what was submitted.
type Metadata struct {
	QASM           string
	TranspiledQASM string
	Shots          int
	ResultKinds    []domain.ResultKind
	IniNoise       bool
}

// Job is a handle on a job running on the simulator. Once a terminal
// status has been observed it is never queried again.
type Job struct {
	id      string
	backend string
	client  Requester
	logger  *zap.Logger

	mu        sync.Mutex
	meta      Metadata
	status    domain.JobStatus
	fetched   bool
	rawResult []byte
	errMsg    string
	result    *result.Result
}

// New creates a handle for a job that was already started.
func New(client Requester, id, backend string, meta Metadata, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		id:      id,
		backend: backend,
		client:  client,
		meta:    meta,
		logger:  logger.With(zap.String("job_id", id)),
	}
}

// ID returns the server-issued job uuid.
func (j *Job) ID() string { return j.id }

// Backend returns the name of the backend the job runs on.
func (j *Job) Backend() string { return j.backend }

// Metadata returns a copy of the submission metadata.
func (j *Job) Metadata() Metadata {
	j.mu.Lock()
	defer j.mu.Unlock()
	meta := j.meta
	meta.ResultKinds = append([]domain.ResultKind(nil), j.meta.ResultKinds...)
	return meta
}

// Shots returns the number of shots requested.
func (j *Job) Shots() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.meta.Shots
}

// QASM returns the submitted circuit, or the server-transpiled one.
func (j *Job) QASM(transpiled bool) string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if transpiled {
		return j.meta.TranspiledQASM
	}
	return j.meta.QASM
}

// setStatus applies next if the transition is allowed. Caller holds mu.
func (j *Job) setStatus(next domain.JobStatus) domain.JobStatus {
	if !j.status.CanTransition(next) {
		j.logger.Warn("Ignoring backwards status transition",
			zap.String("from", string(j.status)),
			zap.String("to", string(next)),
		)
		return j.status
	}
	if next.IsTerminal() && !j.status.IsTerminal() {
		metrics.JobsCompletedTotal.WithLabelValues(string(next)).Inc()
	}
	j.status = next
	return j.status
}

// Status returns the latest job status. Terminal statuses come from the cache.
func (j *Job) Status(ctx context.Context) (domain.JobStatus, error) {
	j.mu.Lock()
	if j.status.IsTerminal() {
		status := j.status
		j.mu.Unlock()
		return status, nil
	}
	j.mu.Unlock()

	status, err := j.client.GetJobStatus(ctx, j.id)
	if err != nil {
		return "", fmt.Errorf("get status of job %s: %w", j.id, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.setStatus(status), nil
}

// Refresh reloads the job record from the server. A job unknown to the
// server leaves the handle untouched.
func (j *Job) Refresh(ctx context.Context) error {
	record, err := j.client.GetJob(ctx, j.id)
	if err != nil {
		return fmt.Errorf("%w: error getting job %s: %v", domain.ErrJob, j.id, err)
	}
	if record == nil {
		return nil
	}
	status, err := domain.ParseJobStatus(record.Status)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.setStatus(status)
	j.meta.TranspiledQASM = record.Task
	if record.TaskOrig != "" {
		j.meta.QASM = record.TaskOrig
	}
	if record.Options.Shots > 0 {
		j.meta.Shots = record.Options.Shots
	}
	if record.Options.Result != "" {
		j.meta.ResultKinds = domain.SplitResultKinds(record.Options.Result)
	}
	if j.status.IsTerminal() {
		j.rawResult = record.Result
		j.errMsg = record.ErrorText()
		j.fetched = true
	}
	return nil
}

// Wait blocks until the job is terminal and returns its final status.
// An empty OutputData asks for every result kind.
func (j *Job) Wait(ctx context.Context, opts api.PollOptions) (domain.JobStatus, error) {
	j.mu.Lock()
	if j.fetched {
		status := j.status
		j.mu.Unlock()
		return status, nil
	}
	j.mu.Unlock()

	if opts.OutputData == "" {
		opts.OutputData = domain.JoinResultKinds(domain.AllResultKinds...)
	}
	res, err := j.client.GetJobResult(ctx, j.id, opts)
	if err != nil {
		return "", fmt.Errorf("wait for job %s: %w", j.id, err)
	}
	status, err := res.JobStatus()
	if err != nil {
		return "", err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.setStatus(status)
	j.rawResult = res.Results
	j.errMsg = res.ErrorText()
	j.fetched = true
	j.logger.Debug("Job reached terminal state", zap.String("status", string(j.status)))
	return j.status, nil
}

// Result waits for the job and returns its parsed result. Cancelled and
// failed jobs return ErrJobCancelled and ErrJobFailed.
func (j *Job) Result(ctx context.Context, opts api.PollOptions) (*result.Result, error) {
	j.mu.Lock()
	if j.result != nil {
		r := j.result
		j.mu.Unlock()
		return r, nil
	}
	j.mu.Unlock()

	status, err := j.Wait(ctx, opts)
	if err != nil {
		return nil, err
	}

	switch status {
	case domain.StatusCancelled:
		return nil, fmt.Errorf("%w: unable to retrieve result for job %s", domain.ErrJobCancelled, j.id)
	case domain.StatusError:
		return nil, fmt.Errorf("%w: unable to retrieve result for job %s, use ErrorMessage for details", domain.ErrJobFailed, j.id)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.result != nil {
		return j.result, nil
	}
	parsed, err := result.Parse(j.rawResult)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", j.id, err)
	}
	j.result = parsed
	return parsed, nil
}

// ErrorMessage waits for the job and returns the server error report when
// it ended in ERROR, or "" otherwise.
func (j *Job) ErrorMessage(ctx context.Context) (string, error) {
	status, err := j.Wait(ctx, api.DefaultPollOptions())
	if err != nil {
		return "", err
	}
	if status != domain.StatusError {
		return "", nil
	}

	j.mu.Lock()
	msg := j.errMsg
	j.mu.Unlock()
	if msg == "" {
		if err := j.Refresh(ctx); err != nil {
			return "", err
		}
		j.mu.Lock()
		msg = j.errMsg
		j.mu.Unlock()
	}
	return "Error: " + msg, nil
}

// MidStatevector returns the statevector captured at barrier n, or nil
// when the result holds none. Result must have been called first.
func (j *Job) MidStatevector(n int) ([]complex128, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.result == nil {
		return nil, fmt.Errorf("%w: call Result before MidStatevector", domain.ErrNoResult)
	}
	sv, _ := j.result.MidStatevector(n)
	return sv, nil
}

// MidDensityMatrix returns the density matrix captured at barrier n, or
// nil when the result holds none. Result must have been called first.
func (j *Job) MidDensityMatrix(n int) ([][]complex128, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.result == nil {
		return nil, fmt.Errorf("%w: call Result before MidDensityMatrix", domain.ErrNoResult)
	}
	dm, _ := j.result.MidDensityMatrix(n)
	return dm, nil
}

// Cancel is not supported by the simulator and always returns false.
func (j *Job) Cancel() bool {
	return false
}

// Submit is not supported; jobs are started by the adapters.
func (j *Job) Submit() error {
	return fmt.Errorf("%w: submit is not supported, use the backend's Run", domain.ErrInvalidArgument)
}
