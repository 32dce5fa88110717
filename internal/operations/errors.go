package operations

import (
	"context"
	"errors"
	"fmt"

	"budgetpulse/internal/report"
)

// ErrorType represents the type of operation error
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeArtifact     ErrorType = "artifact"
	ErrorTypeCancellation ErrorType = "cancellation"
)

// OperationError is a stage failure
type OperationError struct {
	Type    ErrorType `json:"type"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e == nil {
		return "unknown operation error"
	}
	if e.Stage != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Stage, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewValidationError creates a validation error for a rejected dataset
func NewValidationError(stage string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeValidation,
		Stage:   stage,
		Message: cause.Error(),
		Cause:   cause,
	}
}

// NewExecutionError creates a new execution error
func NewExecutionError(stage string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeExecution,
		Stage:   stage,
		Message: cause.Error(),
		Cause:   cause,
	}
}

// NewCancellationError creates a new cancellation error
func NewCancellationError(stage string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeCancellation,
		Stage:   stage,
		Message: "operation was cancelled",
		Cause:   cause,
	}
}

// WrapError classifies a stage error. Errors that are already an
// OperationError keep their type.
func WrapError(err error, stage string) *OperationError {
	if err == nil {
		return nil
	}

	var opErr *OperationError
	if errors.As(err, &opErr) {
		if opErr.Stage == "" {
			opErr.Stage = stage
		}
		return opErr
	}

	var artifactErr *report.ArtifactError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewCancellationError(stage, err)
	case errors.As(err, &artifactErr):
		return &OperationError{
			Type:    ErrorTypeArtifact,
			Stage:   stage,
			Message: err.Error(),
			Cause:   err,
		}
	default:
		return NewExecutionError(stage, err)
	}
}

// GetErrorType returns the type of the error
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ""
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Type
	}
	return ErrorTypeExecution
}

// RootMessage is the message recorded on a failed job: the deepest cause
// that is not an OperationError.
func RootMessage(err error) string {
	if err == nil {
		return ""
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		if opErr.Type == ErrorTypeCancellation {
			return opErr.Message
		}
		if opErr.Cause != nil {
			return opErr.Cause.Error()
		}
		return opErr.Message
	}
	return err.Error()
}
