package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code for each error type
type ErrorCode string

const (
	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeConflict     ErrorCode = "CONFLICT"

	// Generation errors
	ErrCodeExternalGenerationFailed ErrorCode = "EXTERNAL_GENERATION_FAILED"
	ErrCodeMalformedExternalOutput  ErrorCode = "MALFORMED_EXTERNAL_OUTPUT"
	ErrCodeTaxonomyBuildFailed      ErrorCode = "TAXONOMY_BUILD_FAILED"
	ErrCodeSessionInitFailed        ErrorCode = "SESSION_INIT_FAILED"
	ErrCodeInvalidRating            ErrorCode = "INVALID_RATING"

	// Database errors
	ErrCodeDatabaseError   ErrorCode = "DATABASE_ERROR"
	ErrCodeRecordNotFound  ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeDuplicateRecord ErrorCode = "DUPLICATE_RECORD"

	// Queue errors
	ErrCodeQueueError ErrorCode = "QUEUE_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds additional context to the error
func (e *AppError) WithDetails(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an existing error with AppError context
func Wrap(err error, code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// Common error constructors

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message, http.StatusInternalServerError)
}

func BadRequest(message string) *AppError {
	return New(ErrCodeBadRequest, message, http.StatusBadRequest)
}

// Generation errors

// ExternalGenerationFailed marks a failed or timed-out call to a text or image model
func ExternalGenerationFailed(err error, capability string) *AppError {
	return Wrap(err, ErrCodeExternalGenerationFailed,
		fmt.Sprintf("%s generation failed", capability),
		http.StatusBadGateway)
}

// MalformedExternalOutput marks model output that could not be coerced into the expected shape
func MalformedExternalOutput(message string) *AppError {
	return New(ErrCodeMalformedExternalOutput, message, http.StatusBadGateway)
}

func TaxonomyBuildFailed(err error, category string) *AppError {
	return Wrap(err, ErrCodeTaxonomyBuildFailed, "failed to build parameter taxonomy", http.StatusBadGateway).
		WithDetails("category", category)
}

func SessionInitFailed(err error) *AppError {
	status := http.StatusInternalServerError
	if appErr, ok := GetAppError(err); ok && appErr.StatusCode != 0 {
		status = appErr.StatusCode
	}
	return Wrap(err, ErrCodeSessionInitFailed, "session initialization failed", status)
}

func InvalidRating(rating int) *AppError {
	return New(ErrCodeInvalidRating,
		fmt.Sprintf("rating %d is not one of -3, -1, 1, 3", rating),
		http.StatusBadRequest)
}

// Database errors

func DatabaseError(err error) *AppError {
	return Wrap(err, ErrCodeDatabaseError, "database operation failed", http.StatusInternalServerError)
}

func RecordNotFound(resource string) *AppError {
	return New(ErrCodeRecordNotFound,
		fmt.Sprintf("%s not found", resource),
		http.StatusNotFound)
}

// Queue errors

func QueueError(err error) *AppError {
	return Wrap(err, ErrCodeQueueError, "failed to enqueue task", http.StatusInternalServerError)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// HasCode reports whether any AppError in the chain carries code
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}
