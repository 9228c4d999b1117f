package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/domain"
	"github.com/c12qe/c12sim-go/internal/metrics"
	"github.com/c12qe/c12sim-go/internal/result"
)

const (
	// DefaultPollWait is the pause between two polls used by DefaultPollOptions.
	DefaultPollWait = 5 * time.Second
	// MinPollWait is the smallest pause accepted between two polls.
	MinPollWait = 500 * time.Millisecond
)

// PollOptions controls GetJobResult.
type PollOptions struct {
	// OutputData overrides the result kinds returned by the server, e.g. "counts,statevector".
	OutputData string
	// Timeout bounds the total polling time. Zero waits until the job is terminal.
	Timeout time.Duration
	// Wait is the pause between polls. It must be at least MinPollWait.
	Wait time.Duration
}

// DefaultPollOptions waits DefaultPollWait between polls, without timeout.
func DefaultPollOptions() PollOptions {
	return PollOptions{Wait: DefaultPollWait}
}

func (o PollOptions) validate() (time.Duration, error) {
	if o.Wait < MinPollWait {
		return 0, fmt.Errorf("%w: wait cannot be smaller than %s, got %s", domain.ErrInvalidArgument, MinPollWait, o.Wait)
	}
	return o.Wait, nil
}

// StartJob submits a circuit and returns the job uuid and the transpiled QASM.
func (c *Client) StartJob(ctx context.Context, req domain.StartJobRequest) (string, string, error) {
	if req.QASM == "" {
		return "", "", domain.ErrEmptyCircuit
	}
	if req.Shots <= 0 {
		return "", "", fmt.Errorf("%w: shots must be positive, got %d", domain.ErrInvalidArgument, req.Shots)
	}

	params := map[string]any{
		"qasm_str":     req.QASM,
		"num_shots":    req.Shots,
		"result":       domain.JoinResultKinds(req.ResultKinds...),
		"backend_name": req.BackendName,
	}
	switch {
	case req.IniLabel != "":
		params["inilabel"] = req.IniLabel
	case len(req.IniStatevector) > 0:
		params["inistatevector"] = result.FormatStatevector(req.IniStatevector)
	}
	if req.IniNoise {
		params["ininoise"] = true
	}
	if req.PhysicalParams != "" {
		params["physical_params"] = req.PhysicalParams
	}

	payload, err := c.DoRequest(ctx, c.URL(PathQuery), http.MethodPost, params, nil)
	if err != nil {
		return "", "", err
	}
	if !payload.Has("job_uuid") || !payload.Has("transpiled") {
		return "", "", fmt.Errorf("%w: unexpected error starting job", domain.ErrAPI)
	}

	var jobID, transpiled string
	if err := payload.Field("job_uuid", &jobID); err != nil {
		return "", "", err
	}
	if err := payload.Field("transpiled", &transpiled); err != nil {
		return "", "", err
	}

	metrics.JobsSubmittedTotal.WithLabelValues(req.BackendName).Inc()
	c.logger.Info("Job started", zap.String("job_id", jobID), zap.String("backend", req.BackendName))
	return jobID, transpiled, nil
}

// GetJobStatus returns the current status of a job.
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (domain.JobStatus, error) {
	payload, err := c.get(ctx, PathJobStatus, map[string]any{"job_uuid": jobID})
	if err != nil {
		return "", err
	}
	var status string
	if err := payload.Field("status", &status); err != nil {
		return "", err
	}
	return domain.ParseJobStatus(status)
}

// GetJobResult polls the job until it reaches a terminal state and returns
// the last payload. A terminal job costs exactly one request.
func (c *Client) GetJobResult(ctx context.Context, jobID string, opts PollOptions) (*domain.JobResult, error) {
	wait, err := opts.validate()
	if err != nil {
		return nil, err
	}

	params := map[string]any{"job_uuid": jobID}
	if opts.OutputData != "" {
		params["output_data"] = opts.OutputData
	}

	start := time.Now()
	for {
		payload, err := c.get(ctx, PathQuery, params)
		if err != nil {
			return nil, err
		}
		metrics.JobPollsTotal.Inc()

		var res domain.JobResult
		if err := payload.Field("status", &res.Status); err != nil {
			return nil, err
		}
		res.Results = payload["results"]
		res.Errors = payload["errors"]

		status, err := res.JobStatus()
		if err != nil {
			return nil, err
		}

		elapsed := time.Since(start)
		c.logger.Debug("Polled job",
			zap.String("job_id", jobID),
			zap.String("status", string(status)),
			zap.Duration("elapsed", elapsed),
		)

		if status.IsTerminal() {
			return &res, nil
		}

		sleep := wait
		if opts.Timeout > 0 {
			remaining := opts.Timeout - elapsed
			if remaining <= 0 {
				return nil, fmt.Errorf("%w %s after %s (last status %s)", domain.ErrTimeout, jobID, elapsed.Round(time.Millisecond), status)
			}
			if remaining < sleep {
				sleep = remaining
			}
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// GetJob returns the full server-side record of a job, or nil when the server has none.
func (c *Client) GetJob(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	payload, err := c.get(ctx, PathGetJob, map[string]any{"job_uuid": jobID})
	if err != nil {
		return nil, err
	}
	var record *domain.JobRecord
	if err := payload.Field("job", &record); err != nil {
		return nil, err
	}
	return record, nil
}

// GetUserJobs lists the jobs of the token owner.
func (c *Client) GetUserJobs(ctx context.Context, limit, offset int) ([]domain.JobRecord, error) {
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", domain.ErrInvalidArgument)
	}
	payload, err := c.get(ctx, PathUserJobs, map[string]any{"limit": limit, "offset": offset})
	if err != nil {
		return nil, err
	}
	var jobs []domain.JobRecord
	if err := payload.Field("jobs", &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetBackends lists the simulator backends available to the token owner.
func (c *Client) GetBackends(ctx context.Context) ([]domain.BackendInfo, error) {
	payload, err := c.get(ctx, PathBackends, nil)
	if err != nil {
		return nil, err
	}
	var backends []domain.BackendInfo
	if err := payload.Field("backends", &backends); err != nil {
		return nil, err
	}
	return backends, nil
}

// GetParams returns the default physical parameters of the simulator.
func (c *Client) GetParams(ctx context.Context) (map[string]any, error) {
	payload, err := c.get(ctx, PathParams, nil)
	if err != nil {
		return nil, err
	}
	var params map[string]any
	if err := payload.Field("physical_params", &params); err != nil {
		return nil, err
	}
	return params, nil
}

// GetMaxJobs returns how many jobs the token owner may run at once.
func (c *Client) GetMaxJobs(ctx context.Context) (int, error) {
	payload, err := c.get(ctx, PathMaxJobs, nil)
	if err != nil {
		return 0, err
	}
	var maxJobs int
	if err := payload.Field("maxjobs", &maxJobs); err != nil {
		return 0, err
	}
	return maxJobs, nil
}

// Health checks that the API answers.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.get(ctx, PathHealth, nil)
	return err
}
