package errors

import (
	"fmt"
)

// Common error creators for frequent use cases

// NewStoreError creates a store error with operation context
func NewStoreError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStoreQuery, fmt.Sprintf("store %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Store operation failed")
}

// NewAPIError creates an API error for external service calls
func NewAPIError(service, endpoint string, statusCode int, err error) *AppError {
	var code ErrorCode

	switch service {
	case "onebot":
		code = ErrCodeOneBotAPI
	case "renderer":
		code = ErrCodeRendererAPI
	case "schedule":
		code = ErrCodeScheduleAPI
	default:
		code = ErrCodeInternalError
	}

	// Server-side and throttling failures are worth retrying
	retryable := statusCode >= 500 || statusCode == 429 || statusCode == 408

	appErr := Wrap(err, code, fmt.Sprintf("%s API call failed", service)).
		WithContext("service", service).
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode)

	if retryable {
		appErr.Retryable = true
	}

	return appErr
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}

// NewAlreadyProcessedError creates the distinguished conflict error for an
// approval flag that has already been consumed on the platform side.
func NewAlreadyProcessedError(endpoint string, cause error) *AppError {
	return Wrap(cause, ErrCodeAlreadyProcessed, "request already processed by platform").
		WithContext("endpoint", endpoint).
		WithUserMessage("Request was already handled")
}
