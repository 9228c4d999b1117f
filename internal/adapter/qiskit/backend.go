// Package qiskit adapts the C12 simulator to a Qiskit-style provider,
// backend and job model.
package qiskit

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/api"
	"github.com/c12qe/c12sim-go/internal/domain"
	"github.com/c12qe/c12sim-go/internal/job"
	"github.com/c12qe/c12sim-go/internal/qasm"
)

const (
	// DefaultShots is used when RunOptions.Shots is zero.
	DefaultShots = 1024
	// DefaultJobsLimit is used when Jobs is called with a zero limit.
	DefaultJobsLimit = 50
)

// runResultKinds are requested for every job started by Run.
var runResultKinds = []domain.ResultKind{domain.ResultCounts, domain.ResultStatevector}

// Client is the part of the API client the adapter needs.
type Client interface {
	job.Requester
	StartJob(ctx context.Context, req domain.StartJobRequest) (string, string, error)
	GetBackends(ctx context.Context) ([]domain.BackendInfo, error)
	GetUserJobs(ctx context.Context, limit, offset int) ([]domain.JobRecord, error)
}

var _ Client = (*api.Client)(nil)

// Provider gives access to the simulator backends.
type Provider struct {
	client Client
	logger *zap.Logger
}

// NewProvider creates a provider on top of an API client.
func NewProvider(client Client, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{client: client, logger: logger}
}

// Backends lists the backends whose name contains name. A token without
// permission sees an empty list.
func (p *Provider) Backends(ctx context.Context, name string) ([]domain.BackendInfo, error) {
	backends, err := p.client.GetBackends(ctx)
	if errors.Is(err, domain.ErrPermission) {
		p.logger.Warn("Token has no permission to list backends")
		return []domain.BackendInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backends: %w", err)
	}
	return domain.FilterBackends(backends, name), nil
}

// GetBackend returns the first backend whose name contains name.
func (p *Provider) GetBackend(ctx context.Context, name string) (*Backend, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: backend name is required", domain.ErrInvalidArgument)
	}
	backends, err := p.Backends(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrBackendNotFound, name)
	}
	return &Backend{info: backends[0], name: name, client: p.client, logger: p.logger}, nil
}

// RunOptions tunes Run.
type RunOptions struct {
	Shots          int
	IniNoise       bool
	PhysicalParams string
}

// Backend runs circuits on one simulator backend.
type Backend struct {
	info   domain.BackendInfo
	name   string
	client Client
	logger *zap.Logger
}

// Name returns the name the backend was requested with.
func (b *Backend) Name() string { return b.name }

// Info returns the backend descriptor advertised by the server.
func (b *Backend) Info() domain.BackendInfo { return b.info }

// MaxCircuits returns how many circuits the backend accepts per run.
func (b *Backend) MaxCircuits() int { return b.info.MaxCircuits }

// Target expands the backend descriptor into a Target.
func (b *Backend) Target() (*Target, error) {
	return NewTarget(b.info)
}

// Run starts one job per circuit.
func (b *Backend) Run(ctx context.Context, circuits []string, opts RunOptions) ([]*Job, error) {
	if len(circuits) == 0 {
		return nil, fmt.Errorf("%w: no circuits to run", domain.ErrInvalidArgument)
	}
	shots := opts.Shots
	if shots == 0 {
		shots = DefaultShots
	}

	jobs := make([]*Job, 0, len(circuits))
	for i, circuit := range circuits {
		if err := qasm.Validate(circuit); err != nil {
			return jobs, fmt.Errorf("%w: circuit %d cannot be sent as OpenQASM: %w", domain.ErrJob, i, err)
		}

		jobID, transpiled, err := b.client.StartJob(ctx, domain.StartJobRequest{
			QASM:           circuit,
			Shots:          shots,
			ResultKinds:    runResultKinds,
			BackendName:    b.name,
			IniNoise:       opts.IniNoise,
			PhysicalParams: opts.PhysicalParams,
		})
		if err != nil {
			return jobs, fmt.Errorf("%w: error starting a job: %w", domain.ErrJob, err)
		}

		jobs = append(jobs, newJob(b, jobID, job.Metadata{
			QASM:           circuit,
			TranspiledQASM: transpiled,
			Shots:          shots,
			ResultKinds:    runResultKinds,
			IniNoise:       opts.IniNoise,
		}))
	}
	return jobs, nil
}

// Jobs lists the jobs of the token owner.
func (b *Backend) Jobs(ctx context.Context, limit, offset int) ([]*Job, error) {
	if limit == 0 {
		limit = DefaultJobsLimit
	}
	records, err := b.client.GetUserJobs(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: error getting user jobs: %w", domain.ErrJob, err)
	}
	jobs := make([]*Job, 0, len(records))
	for i := range records {
		jobs = append(jobs, b.fromRecord(&records[i]))
	}
	return jobs, nil
}

// GetJob returns the job with the given uuid, or nil when the server has none.
func (b *Backend) GetJob(ctx context.Context, jobID string) (*Job, error) {
	record, err := b.client.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: error getting a job: %w", domain.ErrJob, err)
	}
	if record == nil {
		return nil, nil
	}
	return b.fromRecord(record), nil
}

func (b *Backend) fromRecord(r *domain.JobRecord) *Job {
	meta := job.Metadata{
		QASM:           r.TaskOrig,
		TranspiledQASM: r.Task,
		Shots:          r.Options.Shots,
		ResultKinds:    domain.SplitResultKinds(r.Options.Result),
	}
	return newJob(b, r.UUID, meta)
}
