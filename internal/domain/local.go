package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LocalJob is the gateway's ledger entry for a job it submitted.
type LocalJob struct {
	JobID          uuid.UUID `json:"job_id"`
	BackendName    string    `json:"backend_name"`
	Shots          int       `json:"shots"`
	ResultKinds    string    `json:"result_kinds"`
	QASM           string    `json:"qasm"`
	TranspiledQASM string    `json:"transpiled_qasm,omitempty"`
	Status         JobStatus `json:"status"`
	Errors         string    `json:"errors,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Result is served by the result endpoint only.
	Result json.RawMessage `json:"-"`
}

// JobOutcome is what a watcher records once a job is terminal.
type JobOutcome struct {
	Status JobStatus
	Result json.RawMessage
	Errors string
}

// JobEvent is published whenever a watched job reaches a terminal state.
type JobEvent struct {
	JobID       uuid.UUID `json:"job_id"`
	BackendName string    `json:"backend_name"`
	Status      JobStatus `json:"status"`
	Errors      string    `json:"errors,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// SubmitRequest represents an incoming circuit submission to the gateway.
type SubmitRequest struct {
	QASM           string   `json:"qasm" binding:"required"`
	BackendName    string   `json:"backend_name"`
	Shots          *int     `json:"shots,omitempty"`
	ResultKinds    []string `json:"result_kinds,omitempty"`
	IniNoise       bool     `json:"ininoise,omitempty"`
	IniLabel       string   `json:"inilabel,omitempty"`
	PhysicalParams string   `json:"physical_params,omitempty"`
}

// SubmitResponse is returned after a successful submission.
type SubmitResponse struct {
	JobID          uuid.UUID `json:"job_id"`
	Status         JobStatus `json:"status"`
	TranspiledQASM string    `json:"transpiled_qasm"`
}
