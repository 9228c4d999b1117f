package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrPermission is returned when the C12 API answers 401.
	ErrPermission = errors.New("you do not have proper credentials to access the requested endpoint")

	// ErrAPI is returned for every other failed exchange with the C12 API:
	// non-2xx status, transport failure, empty body or a missing key.
	ErrAPI = errors.New("error occurred during the execution of the request")

	// ErrTimeout is returned when polling exceeds the caller's deadline.
	ErrTimeout = errors.New("timeout while waiting for job")

	// ErrJob is the root of all job-level failures.
	ErrJob = errors.New("job error")

	// ErrInvalidArgument is returned by validation that runs before any network call.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrBackendNotFound is returned when no backend matches the requested name.
	ErrBackendNotFound = errors.New("no backend available with the given name")

	// ErrJobNotFound is returned when the local ledger has no row for a job.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when a ledger update would move a job backwards.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrPublishFailed is returned when the message broker publish fails.
	ErrPublishFailed = errors.New("failed to publish job event")

	// ErrEmptyCircuit is returned when a submitted circuit has no QASM text.
	ErrEmptyCircuit = errors.New("qasm circuit cannot be empty")

	// ErrPayloadTooLarge is returned when a submitted circuit or request body exceeds the gateway's cap.
	ErrPayloadTooLarge = errors.New("payload too large")
)

var (
	ErrUnknownStatus   = fmt.Errorf("%w: unknown job state", ErrJob)
	ErrJobFailed       = fmt.Errorf("%w: job finished with an error state", ErrJob)
	ErrJobCancelled    = fmt.Errorf("%w: job was cancelled", ErrJob)
	ErrNoResult        = fmt.Errorf("%w: no result stored for the job", ErrJob)
	ErrMalformedResult = fmt.Errorf("%w: result is in a wrong format", ErrJob)
)

// HTTPError describes a non-2xx answer from the C12 API.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	if e.StatusCode == http.StatusUnauthorized {
		return fmt.Sprintf("%s %s: %d: %s", e.Method, e.URL, e.StatusCode, ErrPermission)
	}
	return fmt.Sprintf("%s %s: %s: %d", e.Method, e.URL, ErrAPI, e.StatusCode)
}

// Unwrap maps 401 onto ErrPermission and everything else onto ErrAPI, so
// a 401 never satisfies errors.Is(err, ErrAPI).
func (e *HTTPError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrPermission
	}
	return ErrAPI
}

// IsTransient reports whether a failed exchange with the C12 API is worth
// retrying: transport failures, unreadable bodies and 5xx answers. Other
// HTTP statuses and every non-API error are permanent.
func IsTransient(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= http.StatusInternalServerError
	}
	return errors.Is(err, ErrAPI)
}
