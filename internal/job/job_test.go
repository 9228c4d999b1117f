package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/api"
	"github.com/c12qe/c12sim-go/internal/c12test"
	"github.com/c12qe/c12sim-go/internal/domain"
)

type mockRequester struct {
	StatusFn func(ctx context.Context, id string) (domain.JobStatus, error)
	ResultFn func(ctx context.Context, id string, opts api.PollOptions) (*domain.JobResult, error)
	GetJobFn func(ctx context.Context, id string) (*domain.JobRecord, error)

	statusCalls int
	resultCalls int
	lastOpts    api.PollOptions
}

func (m *mockRequester) GetJobStatus(ctx context.Context, id string) (domain.JobStatus, error) {
	m.statusCalls++
	return m.StatusFn(ctx, id)
}

func (m *mockRequester) GetJobResult(ctx context.Context, id string, opts api.PollOptions) (*domain.JobResult, error) {
	m.resultCalls++
	m.lastOpts = opts
	return m.ResultFn(ctx, id, opts)
}

func (m *mockRequester) GetJob(ctx context.Context, id string) (*domain.JobRecord, error) {
	return m.GetJobFn(ctx, id)
}

func finished() *domain.JobResult {
	return &domain.JobResult{Status: "FINISHED", Results: json.RawMessage(c12test.BellResult)}
}

func TestStatus_TerminalIsCached(t *testing.T) {
	m := &mockRequester{StatusFn: func(ctx context.Context, id string) (domain.JobStatus, error) {
		return domain.StatusFinished, nil
	}}
	j := New(m, "id-1", "c12sim-iswap", Metadata{}, zap.NewNop())

	for i := 0; i < 3; i++ {
		status, err := j.Status(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status != domain.StatusFinished {
			t.Errorf("expected FINISHED, got %s", status)
		}
	}
	if m.statusCalls != 1 {
		t.Errorf("expected a single status request, got %d", m.statusCalls)
	}
}

func TestStatus_NeverMovesBackwards(t *testing.T) {
	seq := []domain.JobStatus{domain.StatusRunning, domain.StatusQueued}
	m := &mockRequester{StatusFn: func(ctx context.Context, id string) (domain.JobStatus, error) {
		s := seq[0]
		seq = seq[1:]
		return s, nil
	}}
	j := New(m, "id-1", "", Metadata{}, nil)

	if s, _ := j.Status(context.Background()); s != domain.StatusRunning {
		t.Fatalf("expected RUNNING, got %s", s)
	}
	if s, _ := j.Status(context.Background()); s != domain.StatusRunning {
		t.Errorf("expected status to stay RUNNING, got %s", s)
	}
}

func TestStatus_APIError(t *testing.T) {
	m := &mockRequester{StatusFn: func(ctx context.Context, id string) (domain.JobStatus, error) {
		return "", domain.ErrAPI
	}}
	j := New(m, "id-1", "", Metadata{}, nil)
	if _, err := j.Status(context.Background()); !errors.Is(err, domain.ErrAPI) {
		t.Errorf("expected ErrAPI, got %v", err)
	}
}

func TestResult_FinishedParsesAndCaches(t *testing.T) {
	m := &mockRequester{ResultFn: func(ctx context.Context, id string, opts api.PollOptions) (*domain.JobResult, error) {
		return finished(), nil
	}}
	j := New(m, "id-1", "", Metadata{Shots: 1024}, nil)

	res, err := j.Result(context.Background(), api.DefaultPollOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Counts["00"] != 512 || res.Counts["11"] != 512 {
		t.Errorf("unexpected counts %v", res.Counts)
	}
	if m.lastOpts.OutputData != "counts,statevector,states,density_matrix" {
		t.Errorf("expected every result kind to be requested, got %q", m.lastOpts.OutputData)
	}

	if _, err := j.Result(context.Background(), api.DefaultPollOptions()); err != nil {
		t.Fatalf("second Result: %v", err)
	}
	if m.resultCalls != 1 {
		t.Errorf("expected a single poll, got %d", m.resultCalls)
	}

	status, err := j.Status(context.Background())
	if err != nil || status != domain.StatusFinished {
		t.Errorf("expected cached FINISHED, got %s (%v)", status, err)
	}
}

func TestResult_CancelledAndFailed(t *testing.T) {
	cancelled := &mockRequester{ResultFn: func(ctx context.Context, id string, opts api.PollOptions) (*domain.JobResult, error) {
		return &domain.JobResult{Status: "CANCELLED"}, nil
	}}
	if _, err := New(cancelled, "a", "", Metadata{}, nil).Result(context.Background(), api.DefaultPollOptions()); !errors.Is(err, domain.ErrJobCancelled) {
		t.Errorf("expected ErrJobCancelled, got %v", err)
	}

	failed := &mockRequester{ResultFn: func(ctx context.Context, id string, opts api.PollOptions) (*domain.JobResult, error) {
		return &domain.JobResult{Status: "ERROR", Errors: json.RawMessage(`"qubit out of range"`)}, nil
	}}
	j := New(failed, "b", "", Metadata{}, nil)
	if _, err := j.Result(context.Background(), api.DefaultPollOptions()); !errors.Is(err, domain.ErrJobFailed) {
		t.Errorf("expected ErrJobFailed, got %v", err)
	}
	msg, err := j.ErrorMessage(context.Background())
	if err != nil {
		t.Fatalf("ErrorMessage: %v", err)
	}
	if msg != "Error: qubit out of range" {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestResult_Timeout(t *testing.T) {
	m := &mockRequester{ResultFn: func(ctx context.Context, id string, opts api.PollOptions) (*domain.JobResult, error) {
		return nil, domain.ErrTimeout
	}}
	j := New(m, "id-1", "", Metadata{}, nil)
	if _, err := j.Result(context.Background(), api.DefaultPollOptions()); !errors.Is(err, domain.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestErrorMessage_FinishedJob(t *testing.T) {
	m := &mockRequester{ResultFn: func(ctx context.Context, id string, opts api.PollOptions) (*domain.JobResult, error) {
		return finished(), nil
	}}
	msg, err := New(m, "id-1", "", Metadata{}, nil).ErrorMessage(context.Background())
	if err != nil || msg != "" {
		t.Errorf("expected no message, got %q (%v)", msg, err)
	}
	if m.lastOpts.Wait != api.DefaultPollWait {
		t.Errorf("expected the default poll wait, got %s", m.lastOpts.Wait)
	}
}

func TestMidState_RequiresResult(t *testing.T) {
	m := &mockRequester{ResultFn: func(ctx context.Context, id string, opts api.PollOptions) (*domain.JobResult, error) {
		return finished(), nil
	}}
	j := New(m, "id-1", "", Metadata{}, nil)

	if _, err := j.MidStatevector(1); !errors.Is(err, domain.ErrNoResult) {
		t.Errorf("expected ErrNoResult, got %v", err)
	}
	if _, err := j.MidDensityMatrix(1); !errors.Is(err, domain.ErrNoResult) {
		t.Errorf("expected ErrNoResult, got %v", err)
	}

	if _, err := j.Result(context.Background(), api.DefaultPollOptions()); err != nil {
		t.Fatalf("Result: %v", err)
	}
	sv, err := j.MidStatevector(1)
	if err != nil || len(sv) != 4 {
		t.Errorf("expected 4-element statevector, got %v (%v)", sv, err)
	}
	dm, err := j.MidDensityMatrix(1)
	if err != nil || len(dm) != 4 {
		t.Errorf("expected 4x4 density matrix, got %v (%v)", dm, err)
	}
	if sv, _ := j.MidStatevector(7); sv != nil {
		t.Errorf("expected nil for unknown barrier, got %v", sv)
	}
}

func TestRefresh_UpdatesMetadata(t *testing.T) {
	m := &mockRequester{GetJobFn: func(ctx context.Context, id string) (*domain.JobRecord, error) {
		return &domain.JobRecord{
			UUID:     id,
			Status:   "RUNNING",
			Task:     "transpiled",
			TaskOrig: "original",
			Options:  domain.JobOptions{Shots: 256, Result: "counts, statevector"},
		}, nil
	}}
	j := New(m, "id-1", "", Metadata{}, nil)

	if err := j.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if j.QASM(true) != "transpiled" || j.QASM(false) != "original" {
		t.Errorf("unexpected qasm %q / %q", j.QASM(true), j.QASM(false))
	}
	meta := j.Metadata()
	if meta.Shots != 256 || len(meta.ResultKinds) != 2 || meta.ResultKinds[1] != domain.ResultStatevector {
		t.Errorf("unexpected metadata %+v", meta)
	}
}

func TestRefresh_MissingJobIsNoop(t *testing.T) {
	m := &mockRequester{GetJobFn: func(ctx context.Context, id string) (*domain.JobRecord, error) {
		return nil, nil
	}}
	j := New(m, "id-1", "", Metadata{Shots: 5}, nil)
	if err := j.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if j.Shots() != 5 {
		t.Errorf("expected metadata untouched, got %d shots", j.Shots())
	}
}

func TestRefresh_Error(t *testing.T) {
	m := &mockRequester{GetJobFn: func(ctx context.Context, id string) (*domain.JobRecord, error) {
		return nil, domain.ErrAPI
	}}
	if err := New(m, "id-1", "", Metadata{}, nil).Refresh(context.Background()); !errors.Is(err, domain.ErrJob) {
		t.Errorf("expected ErrJob, got %v", err)
	}
}

func TestCancelAndSubmit(t *testing.T) {
	j := New(&mockRequester{}, "id-1", "", Metadata{}, nil)
	if j.Cancel() {
		t.Error("Cancel must report false")
	}
	if err := j.Submit(); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestJob_AgainstFakeServer(t *testing.T) {
	srv := c12test.NewServer()
	defer srv.Close()
	client, err := api.NewClient(srv.BaseURL(), c12test.Token)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	fake := srv.AddJob(&c12test.Job{
		Statuses: []domain.JobStatus{domain.StatusFinished},
		Result:   json.RawMessage(c12test.BellResult),
	})

	j := New(client, fake.UUID, "c12sim-iswap", Metadata{Shots: 1024}, nil)
	res, err := j.Result(context.Background(), api.PollOptions{Wait: api.MinPollWait})
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if res.Shots() != 1024 {
		t.Errorf("expected 1024 shots in counts, got %d", res.Shots())
	}
}
