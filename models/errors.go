package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingRequestID is returned when a refresh POST succeeds without a RequestId header.
var ErrMissingRequestID = errors.New("refresh accepted but no RequestId header was returned")

// AuthError means no access token could be obtained.
type AuthError struct {
	Code          string
	Description   string
	CorrelationID string
	Err           error
}

func (e *AuthError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("could not obtain access token: %s: %s (correlation_id: %s)", e.Code, e.Description, e.CorrelationID)
	}
	return fmt.Sprintf("could not obtain access token: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NotFoundError means a name could not be resolved to an identifier.
type NotFoundError struct {
	Kind     string // workspace, dataset, dataflow
	Name     string
	Function string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: no %s named '%s' was found", e.Function, e.Kind, e.Name)
}

// HTTPError is a non-2xx response from the REST API.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s failed with status code %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// RefreshFailedError means the refresh reached the Failed status.
type RefreshFailedError struct {
	RequestID string
	Status    string
	ErrorCode string
}

func (e *RefreshFailedError) Error() string {
	return fmt.Sprintf("refresh %s did not succeed: status '%s', error code '%s'", e.RequestID, e.Status, e.ErrorCode)
}

type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action '%s'", e.Action)
}

// ConfigMismatchError means the requested environment cannot be served by this process.
type ConfigMismatchError struct {
	Requested string
	Ambient   string
	Reason    string
}

func (e *ConfigMismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("environment '%s': %s", e.Requested, e.Reason)
	}
	return fmt.Sprintf("environment '%s' does not match the configured environment '%s'", e.Requested, e.Ambient)
}

// TimeoutError means polling gave up while the refresh status was still Unknown.
type TimeoutError struct {
	RequestID string
	Attempts  int
	Waited    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("refresh %s still in progress after %d attempts (%s)", e.RequestID, e.Attempts, e.Waited)
}
