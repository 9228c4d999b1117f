package qiskit

import (
	"context"
	"fmt"

	"github.com/c12qe/c12sim-go/internal/api"
	"github.com/c12qe/c12sim-go/internal/domain"
	"github.com/c12qe/c12sim-go/internal/job"
	"github.com/c12qe/c12sim-go/internal/result"
)

// JobStatus uses Qiskit's vocabulary, where a finished job is DONE.
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobDone      JobStatus = "DONE"
	JobError     JobStatus = "ERROR"
	JobCancelled JobStatus = "CANCELLED"
)

// StatusFromServer maps a server status string onto a JobStatus.
func StatusFromServer(s string) (JobStatus, error) {
	status, err := domain.ParseJobStatus(s)
	if err != nil {
		return "", err
	}
	return fromDomain(status), nil
}

func fromDomain(s domain.JobStatus) JobStatus {
	if s == domain.StatusFinished {
		return JobDone
	}
	return JobStatus(s)
}

// ExperimentResult holds the outcome of one circuit.
type ExperimentResult struct {
	Shots   int
	Success bool
	Status  JobStatus
	Data    *result.Result
}

// Result is what Job.Result returns.
type Result struct {
	BackendName string
	JobID       string
	Success     bool
	Status      JobStatus
	Results     []ExperimentResult
}

// Counts returns the counts of the first experiment.
func (r *Result) Counts() map[string]int {
	if len(r.Results) == 0 || r.Results[0].Data == nil {
		return nil
	}
	return r.Results[0].Data.Counts
}

// Statevector returns the final statevector of the first experiment.
func (r *Result) Statevector() []complex128 {
	if len(r.Results) == 0 || r.Results[0].Data == nil {
		return nil
	}
	return r.Results[0].Data.Statevector
}

// Job is a Qiskit-flavoured view on a shared job handle.
type Job struct {
	*job.Job
	backend *Backend
}

func newJob(b *Backend, id string, meta job.Metadata) *Job {
	return &Job{Job: job.New(b.client, id, b.Name(), meta, b.logger), backend: b}
}

// Backend returns the backend the job was run on.
func (j *Job) Backend() *Backend { return j.backend }

// Status returns the job status in Qiskit's vocabulary.
func (j *Job) Status(ctx context.Context) (JobStatus, error) {
	status, err := j.Job.Status(ctx)
	if err != nil {
		return "", err
	}
	return fromDomain(status), nil
}

// Result waits for completion and wraps the parsed result.
func (j *Job) Result(ctx context.Context, opts api.PollOptions) (*Result, error) {
	data, err := j.Job.Result(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("result of job %s: %w", j.ID(), err)
	}
	return &Result{
		BackendName: j.backend.Name(),
		JobID:       j.ID(),
		Success:     true,
		Status:      JobDone,
		Results: []ExperimentResult{{
			Shots:   j.Shots(),
			Success: true,
			Status:  JobDone,
			Data:    data,
		}},
	}, nil
}
