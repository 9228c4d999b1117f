package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/c12qe/c12sim-go/internal/domain"
	"github.com/c12qe/c12sim-go/internal/repository"
)

//go:embed schema.sql
var schema string

// Ensure pgJobRepo implements repository.JobRepository.
var _ repository.JobRepository = (*pgJobRepo)(nil)

const jobColumns = `job_id, backend_name, shots, result_kinds, qasm, transpiled_qasm,
		       status, errors, result, created_at, updated_at`

type pgJobRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresJobRepository creates a new PostgreSQL-backed job ledger.
func NewPostgresJobRepository(pool *pgxpool.Pool) repository.JobRepository {
	return &pgJobRepo{pool: pool}
}

// Migrate creates the ledger table if it does not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (r *pgJobRepo) Create(ctx context.Context, job *domain.LocalJob) error {
	query := `
		INSERT INTO c12_jobs (job_id, backend_name, shots, result_kinds, qasm, transpiled_qasm, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, query,
		job.JobID, job.BackendName, job.Shots, job.ResultKinds,
		job.QASM, job.TranspiledQASM, job.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: create job: %w", err)
	}
	job.CreatedAt = now
	job.UpdatedAt = now
	return nil
}

func scanJob(row pgx.Row) (*domain.LocalJob, error) {
	job := &domain.LocalJob{}
	var result []byte
	err := row.Scan(
		&job.JobID, &job.BackendName, &job.Shots, &job.ResultKinds,
		&job.QASM, &job.TranspiledQASM, &job.Status, &job.Errors, &result,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Result = result
	return job, nil
}

func (r *pgJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LocalJob, error) {
	query := `SELECT ` + jobColumns + ` FROM c12_jobs WHERE job_id = $1`

	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get job by id: %w", err)
	}
	return job, nil
}

func (r *pgJobRepo) List(ctx context.Context, limit, offset int) ([]*domain.LocalJob, error) {
	query := `SELECT ` + jobColumns + ` FROM c12_jobs ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*domain.LocalJob, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list jobs: %w", err)
	}
	return jobs, nil
}

func (r *pgJobRepo) ListPending(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT job_id FROM c12_jobs WHERE status IN ($1, $2) ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, domain.StatusQueued, domain.StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending: %w", err)
	}
	return ids, nil
}

// UpdateStatus only touches rows whose current status may move to the new one.
func (r *pgJobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus) error {
	query := `
		UPDATE c12_jobs SET status = $1, updated_at = $2
		WHERE job_id = $3
		  AND status NOT IN ($4, $5, $6)
		  AND NOT (status = $7 AND $1 = $8)`

	tag, err := r.pool.Exec(ctx, query,
		status, time.Now().UTC(), id,
		domain.StatusFinished, domain.StatusError, domain.StatusCancelled,
		domain.StatusRunning, domain.StatusQueued,
	)
	if err != nil {
		return fmt.Errorf("postgres: update status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	return r.rejected(ctx, id, status)
}

func (r *pgJobRepo) SetResult(ctx context.Context, id uuid.UUID, outcome *domain.JobOutcome) error {
	query := `
		UPDATE c12_jobs
		SET status = $1, result = $2, errors = $3, updated_at = $4
		WHERE job_id = $5
		  AND status NOT IN ($6, $7, $8)`

	var result any
	if len(outcome.Result) > 0 {
		result = outcome.Result
	}
	tag, err := r.pool.Exec(ctx, query,
		outcome.Status, result, outcome.Errors, time.Now().UTC(), id,
		domain.StatusFinished, domain.StatusError, domain.StatusCancelled,
	)
	if err != nil {
		return fmt.Errorf("postgres: set result: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	return r.rejected(ctx, id, outcome.Status)
}

// rejected explains why an update matched no row.
func (r *pgJobRepo) rejected(ctx context.Context, id uuid.UUID, status domain.JobStatus) error {
	var current domain.JobStatus
	err := r.pool.QueryRow(ctx, `SELECT status FROM c12_jobs WHERE job_id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: read status: %w", err)
	}
	if current == status {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, status)
}
