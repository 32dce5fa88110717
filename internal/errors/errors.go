package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError describes one rejected field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Error codes
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeUnsupportedFile  = "UNSUPPORTED_FILE"
	CodeInvalidJSON      = "INVALID_JSON"
	CodeMissingSection   = "MISSING_SECTION"
	CodeNotFound         = "NOT_FOUND"
	CodeJobNotFound      = "JOB_NOT_FOUND"
	CodeJobNotCompleted  = "JOB_NOT_COMPLETED"
	CodeArtifactMissing  = "ARTIFACT_MISSING"
	CodeToolNotFound     = "TOOL_NOT_FOUND"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeRateLimit        = "RATE_LIMIT_EXCEEDED"
	CodeInternal         = "INTERNAL_SERVER_ERROR"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
)

// Predefined errors for common scenarios
var (
	ErrInvalidRequest     = New(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format")
	ErrNotFound           = New(http.StatusNotFound, CodeNotFound, "Resource not found")
	ErrRateLimitExceeded  = New(http.StatusTooManyRequests, CodeRateLimit, "Rate limit exceeded")
	ErrInternalServer     = New(http.StatusInternalServerError, CodeInternal, "Internal server error")
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, CodeUnavailable, "Service temporarily unavailable")
)

// InvalidRequestWithError creates an invalid request error carrying the cause
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error())
}

// ErrValidation creates a validation error with field details
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, message, ValidationError{
		Field:   field,
		Message: message,
	})
}

// NewValidationErrors creates a validation error listing several fields
func NewValidationErrors(errs []ValidationError) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed", errs)
}

// UnsupportedFile rejects an upload that is not a JSON file
func UnsupportedFile(filename string) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeUnsupportedFile,
		"Only JSON files are allowed", map[string]string{"filename": filename})
}

// InvalidJSON rejects an upload whose body is not a JSON object
func InvalidJSON(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidJSON, "Invalid JSON format", err.Error())
}

// MissingSection rejects an upload lacking a required top-level key
func MissingSection(key string) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeMissingSection,
		fmt.Sprintf("Missing required key in JSON: %s", key), map[string]string{"key": key})
}

// JobNotFound reports an unknown job ID
func JobNotFound(id string) *APIError {
	return NewWithDetails(http.StatusNotFound, CodeJobNotFound, "Job not found", map[string]string{"job_id": id})
}

// JobNotCompleted reports a download attempt on a job that has not completed
func JobNotCompleted(id, status string) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeJobNotCompleted,
		fmt.Sprintf("Report not ready. Current status: %s", status),
		map[string]string{"job_id": id, "status": status})
}

// ArtifactMissing reports a completed job whose file is gone
func ArtifactMissing(name string) *APIError {
	return NewWithDetails(http.StatusNotFound, CodeArtifactMissing,
		fmt.Sprintf("%s not found", name), map[string]string{"artifact": name})
}

// ToolNotFound reports an unknown stage tool
func ToolNotFound(name string) *APIError {
	return NewWithDetails(http.StatusNotFound, CodeToolNotFound,
		fmt.Sprintf("Tool %q not found", name), map[string]string{"tool": name})
}

// PayloadTooLarge rejects a body over the configured limit
func PayloadTooLarge(limit int64) *APIError {
	return NewWithDetails(http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
		"The request body exceeds the maximum allowed size", map[string]int64{"max_bytes": limit})
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *APIError {
	return New(http.StatusInternalServerError, CodeInternal, message)
}
