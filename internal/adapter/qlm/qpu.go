// Package qlm adapts the C12 simulator to myQLM-style QPUs: a blocking QPU
// and an asynchronous one whose jobs can be dumped and retrieved later.
package qlm

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/api"
	"github.com/c12qe/c12sim-go/internal/domain"
	"github.com/c12qe/c12sim-go/internal/job"
	"github.com/c12qe/c12sim-go/internal/qasm"
	"github.com/c12qe/c12sim-go/internal/result"
)

// DefaultBackendName is used when a QPU is created without a backend name.
const DefaultBackendName = "c12sim-iswap"

var submitResultKinds = []domain.ResultKind{domain.ResultCounts}

// Client is the part of the API client the QPUs need.
type Client interface {
	job.Requester
	StartJob(ctx context.Context, req domain.StartJobRequest) (string, string, error)
	GetBackends(ctx context.Context) ([]domain.BackendInfo, error)
}

var _ Client = (*api.Client)(nil)

// Job is a circuit to sample. Zero NbShots means the backend maximum.
type Job struct {
	Circuit string `yaml:"circuit"`
	NbShots int    `yaml:"nbshots"`
}

// Batch groups jobs submitted together.
type Batch struct {
	Jobs     []Job      `yaml:"jobs"`
	MetaData *BatchMeta `yaml:"meta_data,omitempty"`
}

// BatchMeta links a dumped batch to the jobs started for it.
type BatchMeta struct {
	Backend string   `yaml:"backend"`
	JobIDs  []string `yaml:"job_ids"`
}

// Sample is one measured basis state.
type Sample struct {
	State       uint64
	Bitstring   string
	Count       int
	Probability float64
}

// Result is the outcome of one job. Jobs that ended in ERROR or CANCELLED
// carry no samples and report why in Error.
type Result struct {
	JobID   string
	Shots   int
	Status  domain.JobStatus
	Error   string
	RawData []Sample
	Data    *result.Result
}

// BatchResult holds one Result per job of a batch, in submission order.
type BatchResult struct {
	Results []*Result
}

func newResult(jobID string, shots int, data *result.Result) (*Result, error) {
	total := data.Shots()
	res := &Result{JobID: jobID, Shots: shots, Status: domain.StatusFinished, Data: data}
	for _, bits := range data.Bitstrings() {
		state, err := strconv.ParseUint(bits, 2, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bitstring %q", domain.ErrMalformedResult, bits)
		}
		count := data.Counts[bits]
		sample := Sample{State: state, Bitstring: bits, Count: count}
		if total > 0 {
			sample.Probability = float64(count) / float64(total)
		}
		res.RawData = append(res.RawData, sample)
	}
	return res, nil
}

// Failed returns the results of jobs that did not finish.
func (b *BatchResult) Failed() []*Result {
	var out []*Result
	for _, r := range b.Results {
		if r.Status != domain.StatusFinished {
			out = append(out, r)
		}
	}
	return out
}

// selectBackend returns the first backend whose name contains name.
func selectBackend(ctx context.Context, client Client, name string) (domain.BackendInfo, error) {
	if name == "" {
		name = DefaultBackendName
	}
	backends, err := client.GetBackends(ctx)
	if errors.Is(err, domain.ErrPermission) {
		return domain.BackendInfo{}, fmt.Errorf("permission error occurred during the access to the remote server: %w", err)
	}
	if err != nil {
		return domain.BackendInfo{}, fmt.Errorf("unexpected error happened during the accessing the remote server: %w", err)
	}
	matches := domain.FilterBackends(backends, name)
	if len(matches) == 0 {
		return domain.BackendInfo{}, fmt.Errorf("%w: %q", domain.ErrBackendNotFound, name)
	}
	return matches[0], nil
}

// handler holds what the sync and async QPUs share.
type handler struct {
	client  Client
	backend domain.BackendInfo
	poll    api.PollOptions
	logger  *zap.Logger
}

func newHandler(ctx context.Context, client Client, name string, poll api.PollOptions, logger *zap.Logger) (handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	backend, err := selectBackend(ctx, client, name)
	if err != nil {
		return handler{}, err
	}
	if poll.Wait == 0 {
		poll.Wait = api.DefaultPollWait
	}
	if poll.OutputData == "" {
		poll.OutputData = domain.JoinResultKinds(domain.AllResultKinds...)
	}
	return handler{
		client:  client,
		backend: backend,
		poll:    poll,
		logger:  logger.With(zap.String("backend", backend.Name)),
	}, nil
}

// Backend returns the selected backend.
func (h handler) Backend() domain.BackendInfo { return h.backend }

func (h handler) start(ctx context.Context, j Job) (*job.Job, error) {
	if err := qasm.Validate(j.Circuit); err != nil {
		return nil, err
	}
	shots := j.NbShots
	if shots == 0 {
		shots = h.backend.MaxShots
	}
	jobID, transpiled, err := h.client.StartJob(ctx, domain.StartJobRequest{
		QASM:        j.Circuit,
		Shots:       shots,
		ResultKinds: submitResultKinds,
		BackendName: h.backend.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("error starting a job on the remote server: %w", err)
	}
	return job.New(h.client, jobID, h.backend.Name, job.Metadata{
		QASM:           j.Circuit,
		TranspiledQASM: transpiled,
		Shots:          shots,
		ResultKinds:    submitResultKinds,
	}, h.logger), nil
}

func (h handler) collect(ctx context.Context, j *job.Job) (*Result, error) {
	data, err := j.Result(ctx, h.poll)
	if err != nil {
		return nil, err
	}
	return newResult(j.ID(), j.Shots(), data)
}

// collectOutcome is collect for batches: a failed or cancelled job yields an
// empty Result instead of an error.
func (h handler) collectOutcome(ctx context.Context, j *job.Job) (*Result, error) {
	res, err := h.collect(ctx, j)
	switch {
	case errors.Is(err, domain.ErrJobFailed):
		msg, msgErr := j.ErrorMessage(ctx)
		if msgErr != nil {
			return nil, msgErr
		}
		return &Result{JobID: j.ID(), Shots: j.Shots(), Status: domain.StatusError, Error: msg}, nil
	case errors.Is(err, domain.ErrJobCancelled):
		return &Result{JobID: j.ID(), Shots: j.Shots(), Status: domain.StatusCancelled, Error: err.Error()}, nil
	}
	return res, err
}

// QPU runs jobs and blocks until their results are available.
type QPU struct {
	handler
}

// NewQPU selects the first backend whose name contains name
// (DefaultBackendName when empty). A zero poll Wait uses api.DefaultPollWait
// and a zero Timeout waits forever.
func NewQPU(ctx context.Context, client Client, name string, poll api.PollOptions, logger *zap.Logger) (*QPU, error) {
	h, err := newHandler(ctx, client, name, poll, logger)
	if err != nil {
		return nil, err
	}
	return &QPU{handler: h}, nil
}

// SubmitJob runs one job and waits for its result.
func (q *QPU) SubmitJob(ctx context.Context, j Job) (*Result, error) {
	started, err := q.start(ctx, j)
	if err != nil {
		return nil, err
	}
	return q.collect(ctx, started)
}

// Submit runs every job of the batch one after the other and returns every result.
func (q *QPU) Submit(ctx context.Context, batch Batch) (*BatchResult, error) {
	if len(batch.Jobs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", domain.ErrInvalidArgument)
	}
	out := &BatchResult{Results: make([]*Result, 0, len(batch.Jobs))}
	for i, j := range batch.Jobs {
		res, err := q.SubmitJob(ctx, j)
		if err != nil {
			return nil, fmt.Errorf("batch job %d: %w", i, err)
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}
