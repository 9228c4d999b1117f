package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/domain"
	"github.com/c12qe/c12sim-go/internal/qasm"
	"github.com/c12qe/c12sim-go/internal/repository"
)

const (
	// MaxQASMSize caps the circuit text of one submission.
	MaxQASMSize = 1 << 20 // 1 MB
	// MaxSubmitBody caps a submission's JSON body; escaping can double every QASM byte.
	MaxSubmitBody = 2 * MaxQASMSize
	DefaultShots  = 1024
)

var defaultResultKinds = []domain.ResultKind{domain.ResultCounts, domain.ResultStatevector}

// SubmitJobUsecase starts circuits on the simulator and records them in the ledger.
type SubmitJobUsecase struct {
	client         Simulator
	repo           repository.JobRepository
	queue          Enqueuer
	defaultBackend string
	logger         *zap.Logger
}

// NewSubmitJobUsecase creates a new SubmitJobUsecase. Requests without a
// backend name run on defaultBackend.
func NewSubmitJobUsecase(client Simulator, repo repository.JobRepository, queue Enqueuer, defaultBackend string, logger *zap.Logger) *SubmitJobUsecase {
	return &SubmitJobUsecase{
		client:         client,
		repo:           repo,
		queue:          queue,
		defaultBackend: defaultBackend,
		logger:         logger,
	}
}

// Execute validates the submission, starts the job, records it and hands
// it to the watchers.
func (uc *SubmitJobUsecase) Execute(ctx context.Context, req *domain.SubmitRequest) (*domain.SubmitResponse, error) {
	if strings.TrimSpace(req.QASM) == "" {
		return nil, domain.ErrEmptyCircuit
	}
	if len(req.QASM) > MaxQASMSize {
		return nil, fmt.Errorf("%w: circuit larger than %d bytes", domain.ErrPayloadTooLarge, MaxQASMSize)
	}
	if err := qasm.Validate(req.QASM); err != nil {
		return nil, err
	}

	shots := DefaultShots
	if req.Shots != nil {
		if *req.Shots <= 0 {
			return nil, fmt.Errorf("%w: shots must be positive", domain.ErrInvalidArgument)
		}
		shots = *req.Shots
	}

	kinds, err := parseResultKinds(req.ResultKinds)
	if err != nil {
		return nil, err
	}

	backend, err := uc.resolveBackend(ctx, req.BackendName)
	if err != nil {
		return nil, err
	}
	if backend.MaxShots > 0 && shots > backend.MaxShots {
		return nil, fmt.Errorf("%w: %d shots exceed the %s maximum of %d", domain.ErrInvalidArgument, shots, backend.Name, backend.MaxShots)
	}

	remoteID, transpiled, err := uc.client.StartJob(ctx, domain.StartJobRequest{
		QASM:           req.QASM,
		Shots:          shots,
		ResultKinds:    kinds,
		BackendName:    backend.Name,
		IniNoise:       req.IniNoise,
		IniLabel:       req.IniLabel,
		PhysicalParams: req.PhysicalParams,
	})
	if err != nil {
		uc.logger.Error("Failed to start job", zap.Error(err), zap.String("backend", backend.Name))
		return nil, fmt.Errorf("start job: %w", err)
	}

	jobID, err := uuid.Parse(remoteID)
	if err != nil {
		return nil, fmt.Errorf("%w: server returned job id %q", domain.ErrAPI, remoteID)
	}

	now := time.Now().UTC()
	job := &domain.LocalJob{
		JobID:          jobID,
		BackendName:    backend.Name,
		Shots:          shots,
		ResultKinds:    domain.JoinResultKinds(kinds...),
		QASM:           req.QASM,
		TranspiledQASM: transpiled,
		Status:         domain.StatusQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := uc.repo.Create(ctx, job); err != nil {
		uc.logger.Error("Failed to record job in ledger", zap.Error(err), zap.String("job_id", jobID.String()))
		return nil, fmt.Errorf("create job: %w", err)
	}

	// A job that cannot be queued stays pending and is picked up on restart.
	if err := uc.queue.Enqueue(ctx, jobID); err != nil {
		uc.logger.Warn("Failed to enqueue job for watching", zap.Error(err), zap.String("job_id", jobID.String()))
	}

	uc.logger.Info("Job submitted successfully",
		zap.String("job_id", jobID.String()),
		zap.String("backend", backend.Name),
		zap.Int("shots", shots),
	)

	return &domain.SubmitResponse{
		JobID:          jobID,
		Status:         domain.StatusQueued,
		TranspiledQASM: transpiled,
	}, nil
}

func (uc *SubmitJobUsecase) resolveBackend(ctx context.Context, name string) (domain.BackendInfo, error) {
	if name == "" {
		name = uc.defaultBackend
	}
	backends, err := uc.client.GetBackends(ctx)
	if err != nil {
		return domain.BackendInfo{}, fmt.Errorf("list backends: %w", err)
	}
	matches := domain.FilterBackends(backends, name)
	if len(matches) == 0 {
		return domain.BackendInfo{}, fmt.Errorf("%w: %q", domain.ErrBackendNotFound, name)
	}
	return matches[0], nil
}

func parseResultKinds(raw []string) ([]domain.ResultKind, error) {
	if len(raw) == 0 {
		return defaultResultKinds, nil
	}
	kinds := make([]domain.ResultKind, 0, len(raw))
	for _, s := range raw {
		kind := domain.ResultKind(strings.ToLower(strings.TrimSpace(s)))
		if !isKnownKind(kind) {
			return nil, fmt.Errorf("%w: unknown result kind %q", domain.ErrInvalidArgument, s)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func isKnownKind(kind domain.ResultKind) bool {
	for _, k := range domain.AllResultKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// IsClientError reports whether err was caused by the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrInvalidArgument) ||
		errors.Is(err, domain.ErrEmptyCircuit) ||
		errors.Is(err, domain.ErrPayloadTooLarge) ||
		errors.Is(err, domain.ErrBackendNotFound)
}
