package errors

import (
	"fmt"
)

// Common error creators for frequent use cases

// NewValidationError creates a validation error with field context
func NewValidationError(field, value, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithContext("value", value).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewRowError creates a validation error for one row of a batch import.
// Row numbers are 1-based and refer to the caller's original input.
func NewRowError(row int, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("row", row).
		WithUserMessage(fmt.Sprintf("Row %d: %s", row, message))
}

// NewGuardError creates a guard-violation error. The operation was rejected
// synchronously and engine state is unchanged.
func NewGuardError(message string) *AppError {
	return New(ErrCodeGuardViolation, message).
		WithUserMessage(message)
}

// NewJobNotFoundError creates a missing-job lookup error
func NewJobNotFoundError(id int64) *AppError {
	return New(ErrCodeJobNotFound, fmt.Sprintf("job %d not found", id)).
		WithContext("job_id", id).
		WithUserMessage(fmt.Sprintf("Job %d not found", id))
}

// NewPersistenceError creates a persistence error with operation context
func NewPersistenceError(operation string, err error) *AppError {
	code := ErrCodePersistenceWrite
	if operation == "load" {
		code = ErrCodePersistenceRead
	}
	return Wrap(err, code, fmt.Sprintf("persistence %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Failed to persist queue state")
}

// NewAPIError creates an API error for external service calls
func NewAPIError(endpoint string, statusCode int, err error) *AppError {
	appErr := Wrap(err, ErrCodeWhatsAppAPI, "whatsapp API call failed").
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode)

	// Temporary upstream conditions are worth retrying
	if statusCode >= 500 || statusCode == 429 || statusCode == 408 {
		appErr.Retryable = true
	}

	return appErr
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// HTTPStatusCode maps error codes to appropriate HTTP status codes
func HTTPStatusCode(err error) int {
	switch GetCode(err) {
	case ErrCodeValidationFailed, ErrCodeInvalidInput, ErrCodeInvalidConfig:
		return 400
	case ErrCodeJobNotFound, ErrCodeGroupNotFound:
		return 404
	case ErrCodeGuardViolation:
		return 409
	case ErrCodeTimeout:
		return 408
	case ErrCodeWhatsAppAPI, ErrCodeSendFailed:
		if IsRetryable(err) {
			return 502
		}
		return 500
	case ErrCodePersistenceRead, ErrCodePersistenceWrite:
		return 503
	default:
		return 500
	}
}

// HTTPErrorResponse is the standardized HTTP error body
type HTTPErrorResponse struct {
	Error struct {
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Context interface{} `json:"context,omitempty"`
	} `json:"error"`
}

// ToHTTPResponse converts an error to a standardized HTTP response
func ToHTTPResponse(err error) HTTPErrorResponse {
	var response HTTPErrorResponse

	if appErr, ok := err.(*AppError); ok {
		response.Error.Code = appErr.Code
		response.Error.Message = GetUserMessage(err)
		if len(appErr.Context) > 0 {
			response.Error.Context = appErr.Context
		}
	} else {
		response.Error.Code = ErrCodeInternalError
		response.Error.Message = GetUserMessage(err)
	}

	return response
}
