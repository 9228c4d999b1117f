// Package tket adapts the C12 simulator to a pytket-style backend driven by
// result handles.
package tket

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/api"
	"github.com/c12qe/c12sim-go/internal/domain"
	"github.com/c12qe/c12sim-go/internal/job"
	"github.com/c12qe/c12sim-go/internal/qasm"
	"github.com/c12qe/c12sim-go/internal/result"
)

const (
	DefaultShots          = 1024
	DefaultResultTimeout  = 60 * time.Second
	DefaultResultPollWait = 5 * time.Second
)

var processResultKinds = []domain.ResultKind{domain.ResultCounts, domain.ResultStatevector, domain.ResultDensityMatrix}

// Client is the part of the API client the backend needs.
type Client interface {
	job.Requester
	StartJob(ctx context.Context, req domain.StartJobRequest) (string, string, error)
	GetBackends(ctx context.Context) ([]domain.BackendInfo, error)
}

var _ Client = (*api.Client)(nil)

// Handle identifies a submitted circuit. It is the job uuid.
type Handle string

// StatusEnum is the tket circuit status.
type StatusEnum string

const (
	StatusQueued    StatusEnum = "QUEUED"
	StatusRunning   StatusEnum = "RUNNING"
	StatusCompleted StatusEnum = "COMPLETED"
	StatusError     StatusEnum = "ERROR"
	StatusCancelled StatusEnum = "CANCELLED"
)

func statusEnum(s domain.JobStatus) StatusEnum {
	if s == domain.StatusFinished {
		return StatusCompleted
	}
	return StatusEnum(s)
}

// CircuitStatus is returned by Backend.CircuitStatus.
type CircuitStatus struct {
	Status  StatusEnum
	Message string
}

// ProcessOptions are forwarded with every started job.
type ProcessOptions struct {
	IniNoise       bool
	PhysicalParams string
	// SkipValidation turns off the predicate check.
	SkipValidation bool
}

// ResultOptions bound GetResult. Zero values use DefaultResultTimeout and DefaultResultPollWait.
type ResultOptions struct {
	Timeout time.Duration
	Wait    time.Duration
}

// GetAvailableDevices lists every backend visible to the client's token.
func GetAvailableDevices(ctx context.Context, client Client) ([]domain.BackendInfo, error) {
	backends, err := client.GetBackends(ctx)
	if errors.Is(err, domain.ErrPermission) {
		return nil, fmt.Errorf("you do not have a permission to access the resource: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("an error occurred during the retrieval of the available backends: %w", err)
	}
	return backends, nil
}

// Backend runs circuits on a named simulator backend. Results are cached per handle.
type Backend struct {
	name   string
	client Client
	logger *zap.Logger

	mu      sync.Mutex
	info    *BackendInfo
	jobs    map[Handle]*job.Job
	results map[Handle]*BackendResult
}

// NewBackend creates a backend bound to name.
func NewBackend(name string, client Client, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		name:    name,
		client:  client,
		logger:  logger.With(zap.String("backend", name)),
		jobs:    make(map[Handle]*job.Job),
		results: make(map[Handle]*BackendResult),
	}
}

// BackendInfo fetches the descriptor of the first backend whose name
// contains the backend name. The answer is cached.
func (b *Backend) BackendInfo(ctx context.Context) (*BackendInfo, error) {
	b.mu.Lock()
	if b.info != nil {
		info := b.info
		b.mu.Unlock()
		return info, nil
	}
	b.mu.Unlock()

	backends, err := GetAvailableDevices(ctx, b.client)
	if err != nil {
		return nil, err
	}
	matches := domain.FilterBackends(backends, b.name)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrBackendNotFound, b.name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.info = NewBackendInfo(matches[0])
	return b.info, nil
}

// RequiredPredicates lists what a circuit must satisfy to run on this backend.
func (b *Backend) RequiredPredicates(ctx context.Context) ([]Predicate, error) {
	info, err := b.BackendInfo(ctx)
	if err != nil {
		return nil, err
	}
	return []Predicate{
		noMidMeasure{},
		maxNQubits{n: info.Architecture.NNodes},
		noClassicalControl{},
	}, nil
}

// ValidCircuit checks a circuit against every required predicate.
func (b *Backend) ValidCircuit(ctx context.Context, circuit string) error {
	if err := qasm.Validate(circuit); err != nil {
		return err
	}
	predicates, err := b.RequiredPredicates(ctx)
	if err != nil {
		return err
	}
	for _, p := range predicates {
		if !p.Verify(circuit) {
			return fmt.Errorf("%w: circuit does not satisfy %s", domain.ErrInvalidArgument, p.Name())
		}
	}
	return nil
}

// ProcessCircuits starts every circuit. shots may be empty (default for
// all), hold one value (used for all) or one value per circuit. Circuits
// that fail to start are logged and skipped.
func (b *Backend) ProcessCircuits(ctx context.Context, circuits []string, shots []int, opts ProcessOptions) ([]Handle, error) {
	perCircuit := make([]int, len(circuits))
	switch len(shots) {
	case 0:
	case 1:
		for i := range perCircuit {
			perCircuit[i] = shots[0]
		}
	case len(circuits):
		copy(perCircuit, shots)
	default:
		return nil, fmt.Errorf("%w: %d shot values for %d circuits", domain.ErrInvalidArgument, len(shots), len(circuits))
	}

	if !opts.SkipValidation {
		for i, c := range circuits {
			if err := b.ValidCircuit(ctx, c); err != nil {
				return nil, fmt.Errorf("circuit %d: %w", i, err)
			}
		}
	}

	circuitOpts := opts
	circuitOpts.SkipValidation = true

	handles := make([]Handle, 0, len(circuits))
	for i, c := range circuits {
		h, err := b.ProcessCircuit(ctx, c, perCircuit[i], circuitOpts)
		if err != nil {
			b.logger.Warn("Circuit was not run successfully", zap.Int("index", i), zap.Error(err))
			continue
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// ProcessCircuit starts a single circuit. Zero shots means DefaultShots.
func (b *Backend) ProcessCircuit(ctx context.Context, circuit string, shots int, opts ProcessOptions) (Handle, error) {
	if !opts.SkipValidation {
		if err := b.ValidCircuit(ctx, circuit); err != nil {
			return "", err
		}
	}
	if shots == 0 {
		shots = DefaultShots
	}

	jobID, transpiled, err := b.client.StartJob(ctx, domain.StartJobRequest{
		QASM:           circuit,
		Shots:          shots,
		ResultKinds:    processResultKinds,
		BackendName:    b.name,
		IniNoise:       opts.IniNoise,
		PhysicalParams: opts.PhysicalParams,
	})
	if err != nil {
		return "", fmt.Errorf("error starting a job: %w", err)
	}

	h := Handle(jobID)
	b.mu.Lock()
	b.jobs[h] = job.New(b.client, jobID, b.name, job.Metadata{
		QASM:           circuit,
		TranspiledQASM: transpiled,
		Shots:          shots,
		ResultKinds:    processResultKinds,
		IniNoise:       opts.IniNoise,
	}, b.logger)
	b.mu.Unlock()
	return h, nil
}

// jobFor returns the cached job of a handle, creating one for handles
// obtained elsewhere.
func (b *Backend) jobFor(h Handle) (*job.Job, error) {
	if h == "" {
		return nil, fmt.Errorf("%w: empty result handle", domain.ErrInvalidArgument)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.jobs[h]
	if !ok {
		j = job.New(b.client, string(h), b.name, job.Metadata{ResultKinds: processResultKinds}, b.logger)
		b.jobs[h] = j
	}
	return j, nil
}

// CircuitStatus reports the status of a handle. A completed circuit has
// its result fetched and cached; a failed one carries the server message.
func (b *Backend) CircuitStatus(ctx context.Context, h Handle) (CircuitStatus, error) {
	j, err := b.jobFor(h)
	if err != nil {
		return CircuitStatus{}, err
	}
	status, err := j.Status(ctx)
	if err != nil {
		return CircuitStatus{}, err
	}

	switch status {
	case domain.StatusFinished:
		if _, err := b.GetResult(ctx, h, ResultOptions{}); err != nil {
			return CircuitStatus{}, err
		}
	case domain.StatusError:
		msg, err := b.ErrorMessage(ctx, h)
		if err != nil {
			return CircuitStatus{}, err
		}
		return CircuitStatus{Status: StatusError, Message: msg}, nil
	}
	return CircuitStatus{Status: statusEnum(status)}, nil
}

// ErrorMessage returns the server error report of a failed circuit, or "".
func (b *Backend) ErrorMessage(ctx context.Context, h Handle) (string, error) {
	j, err := b.jobFor(h)
	if err != nil {
		return "", err
	}
	return j.ErrorMessage(ctx)
}

// GetResult waits for a handle and returns its converted result.
func (b *Backend) GetResult(ctx context.Context, h Handle, opts ResultOptions) (*BackendResult, error) {
	b.mu.Lock()
	cached, ok := b.results[h]
	b.mu.Unlock()
	if ok {
		return cached, nil
	}

	j, err := b.jobFor(h)
	if err != nil {
		return nil, err
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultResultTimeout
	}
	if opts.Wait == 0 {
		opts.Wait = DefaultResultPollWait
	}

	data, err := j.Result(ctx, api.PollOptions{
		OutputData: domain.JoinResultKinds(processResultKinds...),
		Timeout:    opts.Timeout,
		Wait:       opts.Wait,
	})
	if errors.Is(err, domain.ErrJobFailed) {
		msg, _ := j.ErrorMessage(ctx)
		return nil, fmt.Errorf("error during the circuit execution %s: %w", msg, err)
	}
	if err != nil {
		return nil, err
	}

	res, err := convertResult(data)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.results[h] = res
	b.mu.Unlock()
	return res, nil
}

// BackendResult is the tket-shaped result of one circuit.
type BackendResult struct {
	State         []complex128
	DensityMatrix [][]complex128
	// Readouts holds one row per shot with the bit order reversed so that
	// index 0 is qubit 0.
	Readouts [][]uint8
}

// Counts folds the readouts back into bitstring counts, in readout order.
func (r *BackendResult) Counts() map[string]int {
	counts := make(map[string]int)
	for _, shot := range r.Readouts {
		key := make([]byte, len(shot))
		for i, bit := range shot {
			key[i] = '0' + bit
		}
		counts[string(key)]++
	}
	return counts
}

func convertResult(data *result.Result) (*BackendResult, error) {
	keys := data.Bitstrings()
	sort.Strings(keys)

	readouts := make([][]uint8, 0, data.Shots())
	for _, key := range keys {
		shot := make([]uint8, len(key))
		for i := 0; i < len(key); i++ {
			bit := key[len(key)-1-i]
			if bit != '0' && bit != '1' {
				return nil, fmt.Errorf("%w: bitstring %q", domain.ErrMalformedResult, key)
			}
			shot[i] = bit - '0'
		}
		for n := 0; n < data.Counts[key]; n++ {
			readouts = append(readouts, shot)
		}
	}

	return &BackendResult{
		State:         data.Statevector,
		DensityMatrix: data.DensityMatrix,
		Readouts:      readouts,
	}, nil
}
