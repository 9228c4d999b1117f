package qlm

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/api"
	"github.com/c12qe/c12sim-go/internal/c12test"
	"github.com/c12qe/c12sim-go/internal/domain"
	"github.com/c12qe/c12sim-go/internal/qasm"
)

var fastPoll = api.PollOptions{Wait: api.MinPollWait}

func newClient(t *testing.T, srv *c12test.Server) *api.Client {
	t.Helper()
	client, err := api.NewClient(srv.BaseURL(), c12test.Token)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func hadamard() string {
	return qasm.NewBuilder(1, 1).Gate("h", 0).MeasureAll().Build()
}

func finishedJobs(srv *c12test.Server) {
	srv.NewJob = func(params map[string]any) *c12test.Job {
		return &c12test.Job{Statuses: []domain.JobStatus{domain.StatusFinished}, Result: json.RawMessage(c12test.BellResult)}
	}
}

func TestNewQPU_BackendSelection(t *testing.T) {
	srv := c12test.NewServer()
	defer srv.Close()
	client := newClient(t, srv)
	ctx := context.Background()

	q, err := NewQPU(ctx, client, "", fastPoll, zap.NewNop())
	if err != nil {
		t.Fatalf("NewQPU: %v", err)
	}
	if q.Backend().Name != DefaultBackendName {
		t.Errorf("expected default backend, got %s", q.Backend().Name)
	}

	q, err = NewQPU(ctx, client, "-cx", fastPoll, nil)
	if err != nil {
		t.Fatalf("NewQPU: %v", err)
	}
	if q.Backend().Name != "c12sim-cx" {
		t.Errorf("expected substring match, got %s", q.Backend().Name)
	}

	if _, err := NewQPU(ctx, client, "absent", fastPoll, nil); !errors.Is(err, domain.ErrBackendNotFound) {
		t.Errorf("expected ErrBackendNotFound, got %v", err)
	}

	client.SetToken("bad")
	if _, err := NewAsyncQPU(ctx, client, "", fastPoll, nil); !errors.Is(err, domain.ErrPermission) {
		t.Errorf("expected ErrPermission, got %v", err)
	}
}

func TestQPU_SubmitJobDefaultsToMaxShots(t *testing.T) {
	srv := c12test.NewServer()
	defer srv.Close()
	finishedJobs(srv)
	q, err := NewQPU(context.Background(), newClient(t, srv), "", fastPoll, nil)
	if err != nil {
		t.Fatalf("NewQPU: %v", err)
	}

	res, err := q.SubmitJob(context.Background(), Job{Circuit: hadamard()})
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}
	params := srv.Job(res.JobID).Params
	if params["num_shots"] != float64(4096) {
		t.Errorf("expected backend max shots, got %v", params["num_shots"])
	}
	if params["result"] != "counts" {
		t.Errorf("expected counts only, got %v", params["result"])
	}

	if len(res.RawData) != 2 {
		t.Fatalf("expected 2 samples, got %+v", res.RawData)
	}
	if res.RawData[1].Bitstring != "11" || res.RawData[1].State != 3 || res.RawData[1].Probability != 0.5 {
		t.Errorf("unexpected sample %+v", res.RawData[1])
	}
}

func TestQPU_SubmitBatchReturnsEveryResult(t *testing.T) {
	srv := c12test.NewServer()
	defer srv.Close()
	finishedJobs(srv)
	q, err := NewQPU(context.Background(), newClient(t, srv), "", fastPoll, nil)
	if err != nil {
		t.Fatalf("NewQPU: %v", err)
	}

	out, err := q.Submit(context.Background(), Batch{Jobs: []Job{{Circuit: hadamard(), NbShots: 10}, {Circuit: hadamard(), NbShots: 20}}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out.Results))
	}
	if out.Results[0].Shots != 10 || out.Results[1].Shots != 20 {
		t.Errorf("unexpected shots %d / %d", out.Results[0].Shots, out.Results[1].Shots)
	}

	if _, err := q.Submit(context.Background(), Batch{}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for empty batch, got %v", err)
	}
}

func TestQPU_FailedJob(t *testing.T) {
	srv := c12test.NewServer()
	defer srv.Close()
	srv.NewJob = func(params map[string]any) *c12test.Job {
		return &c12test.Job{Statuses: []domain.JobStatus{domain.StatusError}, Errors: "boom"}
	}
	q, err := NewQPU(context.Background(), newClient(t, srv), "", fastPoll, nil)
	if err != nil {
		t.Fatalf("NewQPU: %v", err)
	}
	if _, err := q.SubmitJob(context.Background(), Job{Circuit: hadamard()}); !errors.Is(err, domain.ErrJobFailed) {
		t.Errorf("expected ErrJobFailed, got %v", err)
	}
}

func TestAsyncJob_ResultNilUntilTerminal(t *testing.T) {
	srv := c12test.NewServer()
	defer srv.Close()
	srv.NewJob = func(params map[string]any) *c12test.Job {
		return &c12test.Job{
			Statuses: []domain.JobStatus{domain.StatusQueued, domain.StatusRunning, domain.StatusFinished},
			Result:   json.RawMessage(c12test.BellResult),
		}
	}
	a, err := NewAsyncQPU(context.Background(), newClient(t, srv), "", fastPoll, nil)
	if err != nil {
		t.Fatalf("NewAsyncQPU: %v", err)
	}
	aj, err := a.Submit(context.Background(), Batch{Jobs: []Job{{Circuit: hadamard(), NbShots: 100}, {Circuit: hadamard(), NbShots: 100}}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(aj.IDs()) != 2 {
		t.Fatalf("expected 2 ids, got %v", aj.IDs())
	}

	status, err := aj.Status(context.Background())
	if err != nil || status != domain.StatusQueued {
		t.Errorf("expected QUEUED, got %s (%v)", status, err)
	}

	res, err := aj.Result(context.Background())
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil result while jobs are running, got %+v", res)
	}

	res, err = aj.Result(context.Background())
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if res == nil || len(res.Results) != 2 {
		t.Fatalf("expected 2 results, got %+v", res)
	}

	status, err = aj.Status(context.Background())
	if err != nil || status != domain.StatusFinished {
		t.Errorf("expected FINISHED, got %s (%v)", status, err)
	}
	if aj.Cancel() {
		t.Error("Cancel must report false")
	}
}

func TestAsyncJob_DumpAndRetrieve(t *testing.T) {
	srv := c12test.NewServer()
	defer srv.Close()
	finishedJobs(srv)
	a, err := NewAsyncQPU(context.Background(), newClient(t, srv), "", fastPoll, nil)
	if err != nil {
		t.Fatalf("NewAsyncQPU: %v", err)
	}
	aj, err := a.SubmitJob(context.Background(), Job{Circuit: hadamard(), NbShots: 50})
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}

	path := filepath.Join(t.TempDir(), "batch.yaml")
	if err := aj.Dump(path); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(raw), aj.IDs()[0]) {
		t.Errorf("expected dump to contain the job id:\n%s", raw)
	}

	restored, err := a.RetrieveJob(path)
	if err != nil {
		t.Fatalf("RetrieveJob: %v", err)
	}
	if restored.IDs()[0] != aj.IDs()[0] {
		t.Errorf("expected id %s, got %s", aj.IDs()[0], restored.IDs()[0])
	}
	res, err := restored.Result(context.Background())
	if err != nil || res == nil || res.Results[0].Shots != 50 {
		t.Errorf("unexpected restored result %+v (%v)", res, err)
	}
}

func TestRetrieveJob_Invalid(t *testing.T) {
	srv := c12test.NewServer()
	defer srv.Close()
	a, err := NewAsyncQPU(context.Background(), newClient(t, srv), "", fastPoll, nil)
	if err != nil {
		t.Fatalf("NewAsyncQPU: %v", err)
	}

	path := filepath.Join(t.TempDir(), "batch.yaml")
	if err := os.WriteFile(path, []byte("jobs:\n  - circuit: x\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := a.RetrieveJob(path); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := a.RetrieveJob(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestAsyncJob_ResultKeepsFailedJobs(t *testing.T) {
	srv := c12test.NewServer()
	defer srv.Close()
	started := 0
	srv.NewJob = func(params map[string]any) *c12test.Job {
		started++
		switch started {
		case 1:
			return &c12test.Job{Statuses: []domain.JobStatus{domain.StatusFinished}, Result: json.RawMessage(c12test.BellResult)}
		case 2:
			return &c12test.Job{Statuses: []domain.JobStatus{domain.StatusError}, Errors: "unknown gate"}
		default:
			return &c12test.Job{Statuses: []domain.JobStatus{domain.StatusCancelled}}
		}
	}
	a, err := NewAsyncQPU(context.Background(), newClient(t, srv), "", fastPoll, nil)
	if err != nil {
		t.Fatalf("NewAsyncQPU: %v", err)
	}
	aj, err := a.Submit(context.Background(), Batch{Jobs: []Job{
		{Circuit: hadamard(), NbShots: 10},
		{Circuit: hadamard(), NbShots: 20},
		{Circuit: hadamard(), NbShots: 30},
	}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	res, err := aj.Result(context.Background())
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if res == nil || len(res.Results) != 3 {
		t.Fatalf("expected 3 results, got %+v", res)
	}
	if res.Results[0].Status != domain.StatusFinished || len(res.Results[0].RawData) != 2 {
		t.Errorf("unexpected finished result %+v", res.Results[0])
	}
	failed := res.Results[1]
	if failed.Status != domain.StatusError || !strings.Contains(failed.Error, "unknown gate") || len(failed.RawData) != 0 || failed.Shots != 20 {
		t.Errorf("unexpected failed result %+v", failed)
	}
	if res.Results[2].Status != domain.StatusCancelled || res.Results[2].Error == "" {
		t.Errorf("unexpected cancelled result %+v", res.Results[2])
	}
	if got := res.Failed(); len(got) != 2 {
		t.Errorf("expected 2 failed results, got %d", len(got))
	}
}

func TestNewQPU_DefaultPollWait(t *testing.T) {
	srv := c12test.NewServer()
	defer srv.Close()
	q, err := NewQPU(context.Background(), newClient(t, srv), "", api.PollOptions{}, nil)
	if err != nil {
		t.Fatalf("NewQPU: %v", err)
	}
	if q.poll.Wait != api.DefaultPollWait {
		t.Errorf("expected default poll wait, got %s", q.poll.Wait)
	}
}
