package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JobStatus represents the lifecycle state of a simulation job on the C12 server.
type JobStatus string

const (
	StatusQueued    JobStatus = "QUEUED"
	StatusRunning   JobStatus = "RUNNING"
	StatusFinished  JobStatus = "FINISHED"
	StatusError     JobStatus = "ERROR"
	StatusCancelled JobStatus = "CANCELLED"
)

// ParseJobStatus normalises a status string sent by the server.
func ParseJobStatus(s string) (JobStatus, error) {
	status := JobStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case StatusQueued, StatusRunning, StatusFinished, StatusError, StatusCancelled:
		return status, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownStatus, s)
}

// IsTerminal returns true if the status represents a final state.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusFinished, StatusError, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a job may move from s to next.
// Terminal states are absorbing and RUNNING never goes back to QUEUED.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case "":
		return true
	case StatusQueued:
		return next == StatusRunning || next.IsTerminal()
	case StatusRunning:
		return next.IsTerminal()
	}
	return false
}

// ResultKind names one of the outputs the simulator can return.
type ResultKind string

const (
	ResultCounts        ResultKind = "counts"
	ResultStatevector   ResultKind = "statevector"
	ResultDensityMatrix ResultKind = "density_matrix"
	ResultStates        ResultKind = "states"
)

// AllResultKinds is the output_data override used when fetching results.
var AllResultKinds = []ResultKind{ResultCounts, ResultStatevector, ResultStates, ResultDensityMatrix}

// JoinResultKinds renders kinds the way the server expects them ("counts,statevector").
func JoinResultKinds(kinds ...ResultKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

// SplitResultKinds parses a comma-separated list such as "counts, statevector".
func SplitResultKinds(s string) []ResultKind {
	var kinds []ResultKind
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			kinds = append(kinds, ResultKind(part))
		}
	}
	return kinds
}

// JobOptions are the run options stored with a job on the server.
type JobOptions struct {
	Shots  int    `json:"shots"`
	Result string `json:"result"`
}

// JobRecord is a job as returned by the /job and /jobs endpoints.
type JobRecord struct {
	UUID     string          `json:"uuid"`
	Status   string          `json:"status"`
	Task     string          `json:"task"`
	TaskOrig string          `json:"task_orig"`
	Options  JobOptions      `json:"options"`
	Result   json.RawMessage `json:"result,omitempty"`
	Errors   json.RawMessage `json:"errors,omitempty"`
}

// ErrorText renders the server-side error field as plain text.
func (r *JobRecord) ErrorText() string {
	return rawText(r.Errors)
}

// JobResult is the payload returned while polling /query.
type JobResult struct {
	Status  string          `json:"status"`
	Results json.RawMessage `json:"results,omitempty"`
	Errors  json.RawMessage `json:"errors,omitempty"`
}

// JobStatus parses the polled status.
func (r *JobResult) JobStatus() (JobStatus, error) {
	return ParseJobStatus(r.Status)
}

// ErrorText renders the server-side error field as plain text.
func (r *JobResult) ErrorText() string {
	return rawText(r.Errors)
}

// StartJobRequest carries everything needed to start a job.
type StartJobRequest struct {
	QASM        string
	Shots       int
	ResultKinds []ResultKind
	BackendName string
	IniNoise    bool
	// IniLabel and IniStatevector are mutually exclusive initial states;
	// IniLabel wins when both are set.
	IniLabel       string
	IniStatevector []complex128
	PhysicalParams string
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
