package contract

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// ErrorCode classifies every failure the toolkit can surface. The first
// group mirrors the stages of the publish/deploy/execute workflow; the
// second group is used by the sandbox platform for transport-level errors.
type ErrorCode string

const (
	ErrorCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	ErrorCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrorCodePublish       ErrorCode = "PUBLISH_ERROR"
	ErrorCodeDeployment    ErrorCode = "DEPLOYMENT_ERROR"
	ErrorCodeJobExecution  ErrorCode = "JOB_EXECUTION_ERROR"
	ErrorCodeJobTimeout    ErrorCode = "JOB_TIMEOUT_ERROR"

	ErrorCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrorCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// Error is the single error type returned across package boundaries.
// JobID and LastState are only set for job-scoped failures so a caller can
// locate the remote job after the run has aborted.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	JobID     string    `json:"job_id,omitempty"`
	LastState string    `json:"last_state,omitempty"`
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewJobError builds a job-scoped error carrying diagnostics for the job
// that was being observed when the failure occurred.
func NewJobError(code ErrorCode, jobID, lastState, message string) *Error {
	return &Error{Code: code, Message: message, JobID: jobID, LastState: lastState}
}

func (e *Error) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("[%s] %s (job=%s, state=%s)", e.Code, e.Message, e.JobID, e.LastState)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// StatusCode maps an error code onto the HTTP status the sandbox platform
// responds with.
func (e *Error) StatusCode() int {
	switch e.Code {
	case ErrorCodeBadRequest, ErrorCodeConfiguration, ErrorCodePublish, ErrorCodeDeployment:
		return fiber.StatusBadRequest
	case ErrorCodeUnauthorized:
		return fiber.StatusUnauthorized
	case ErrorCodeNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}
