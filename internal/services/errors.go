package services

import (
	"errors"
	"net/http"

	apierrors "budgetpulse/internal/errors"
	"budgetpulse/internal/operations"
	"budgetpulse/internal/tools"
)

var errInvalidBody = errors.New("request body is not valid JSON")

// toAPIError maps operations and tools failures onto API errors. Errors that
// are already *APIError pass through; anything unknown is left for the
// error handler to report as a 500.
func toAPIError(err error, subject string) error {
	var apiErr *apierrors.APIError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, operations.ErrJobNotFound):
		return apierrors.JobNotFound(subject)
	case errors.Is(err, operations.ErrQueueFull):
		return apierrors.NewWithDetails(http.StatusServiceUnavailable, apierrors.CodeUnavailable,
			"Analysis queue is full, try again later", map[string]string{"reason": err.Error()})
	case errors.Is(err, operations.ErrQueueStopped):
		return apierrors.NewWithDetails(http.StatusServiceUnavailable, apierrors.CodeUnavailable,
			"Server is shutting down", map[string]string{"reason": err.Error()})
	case errors.Is(err, tools.ErrNotFound):
		return apierrors.ToolNotFound(subject)
	case errors.Is(err, tools.ErrNoChecker):
		return apierrors.NewWithDetails(http.StatusBadRequest, apierrors.CodeInvalidRequest,
			"Tool output cannot be checked", map[string]string{"tool": subject})
	case errors.Is(err, tools.ErrInvalidArguments):
		return apierrors.InvalidRequestWithError(err)
	}
	return err
}
