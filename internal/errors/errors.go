package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a categorized error code
type ErrorCode string

const (
	// Validation errors
	CodeValidation         ErrorCode = "VALIDATION_ERROR"
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeInvalidFilterRange ErrorCode = "INVALID_FILTER_RANGE"

	// Persistence errors
	CodeDatabase ErrorCode = "DATABASE_ERROR"
	CodeNotFound ErrorCode = "NOT_FOUND"

	// Parse errors
	CodeParse ErrorCode = "PARSE_ERROR"

	// Catalog errors
	CodeCatalogUnavailable ErrorCode = "CATALOG_UNAVAILABLE"
	CodeCatalogUnreachable ErrorCode = "CATALOG_UNREACHABLE"
	CodeRateLimited        ErrorCode = "RATE_LIMITED"

	// Config errors
	CodeConfig ErrorCode = "CONFIG_ERROR"

	// Internal errors
	CodeInternal ErrorCode = "INTERNAL_ERROR"
	CodeUnknown  ErrorCode = "UNKNOWN_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError creates a validation error
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// InvalidFilterRange creates an error for malformed search filters
func InvalidFilterRange(message string) *AppError {
	return New(CodeInvalidFilterRange, message)
}

// DatabaseError creates a database error
func DatabaseError(message string, err error) *AppError {
	return Wrap(err, CodeDatabase, message)
}

// ParseError creates a parse error
func ParseError(message string, err error) *AppError {
	return Wrap(err, CodeParse, message)
}

// CatalogUnavailable reports a non-2xx answer from the catalog.
// A 429 answer is additionally flagged as rate limited.
func CatalogUnavailable(status int, endpoint string) *AppError {
	e := New(CodeCatalogUnavailable, fmt.Sprintf("catalog returned status %d", status)).
		WithContext("status", status).
		WithContext("endpoint", endpoint)
	if status == http.StatusTooManyRequests {
		e.WithContext("rate_limited", true)
	}
	return e
}

// CatalogUnreachable reports a transport-level failure talking to the catalog
func CatalogUnreachable(endpoint string, err error) *AppError {
	return Wrap(err, CodeCatalogUnreachable, "catalog unreachable").
		WithContext("endpoint", endpoint)
}

// ConfigError creates a configuration error
func ConfigError(message string, err error) *AppError {
	if err != nil {
		return Wrap(err, CodeConfig, message)
	}
	return New(CodeConfig, message)
}

// IsRetryable determines if an error is retryable.
// Only rate-limited catalog answers qualify; the catalog client itself never retries.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case CodeRateLimited:
			return true
		case CodeCatalogUnavailable:
			limited, _ := appErr.Context["rate_limited"].(bool)
			return limited
		}
	}
	return false
}

// IsCatalogError reports whether err originated from the catalog transport
func IsCatalogError(err error) bool {
	switch GetErrorCode(err) {
	case CodeCatalogUnavailable, CodeCatalogUnreachable, CodeRateLimited:
		return true
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case CodeValidation, CodeInvalidInput, CodeInvalidFilterRange:
			return true
		}
	}
	return false
}

// NotFoundError creates a not found error
func NotFoundError(resource, identifier string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found: %s", resource, identifier))
}

// HTTPStatus maps an error to the status code the API answers with
func HTTPStatus(err error) int {
	switch GetErrorCode(err) {
	case CodeValidation, CodeInvalidInput, CodeInvalidFilterRange, CodeParse:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeCatalogUnavailable, CodeRateLimited:
		return http.StatusBadGateway
	case CodeCatalogUnreachable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
