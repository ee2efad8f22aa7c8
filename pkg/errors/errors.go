package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeSchemaMismatch indicates a required input field or column is absent
	ErrorTypeSchemaMismatch ErrorType = "SCHEMA_MISMATCH"

	// ErrorTypeInvalidInput indicates a value outside its documented domain
	ErrorTypeInvalidInput ErrorType = "INVALID_INPUT"

	// ErrorTypeModelLoad indicates a predictor artifact is missing or corrupt
	ErrorTypeModelLoad ErrorType = "MODEL_LOAD"

	// ErrorTypeValidation indicates a malformed request
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeRateLimited indicates the caller exceeded a request quota
	ErrorTypeRateLimited ErrorType = "RATE_LIMITED"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error

	// MissingFields lists absent fields or columns for SCHEMA_MISMATCH errors
	MissingFields []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewSchemaMismatchError creates an error naming the missing fields in order
func NewSchemaMismatchError(what string, missing []string) *AppError {
	fields := append([]string(nil), missing...)
	return &AppError{
		Type:          ErrorTypeSchemaMismatch,
		Message:       fmt.Sprintf("%s is missing required fields: %s", what, strings.Join(fields, ", ")),
		MissingFields: fields,
	}
}

// NewSchemaConflictError creates a schema error that is not about absent
// fields, such as a feature order difference or an unknown feature name
func NewSchemaConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeSchemaMismatch,
		Message: message,
	}
}

// NewInvalidInputError creates a new out-of-range input error
func NewInvalidInputError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInvalidInput,
		Message: message,
	}
}

// NewModelLoadError creates a new model load error
func NewModelLoadError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeModelLoad,
		Message: message,
		Err:     err,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewRateLimitedError creates a new rate limit error
func NewRateLimitedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeRateLimited,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// As returns the first AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type
func IsType(err error, t ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == t
}

// HTTPStatus maps an error to the status code the dashboard responds with
func HTTPStatus(err error) int {
	appErr, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch appErr.Type {
	case ErrorTypeSchemaMismatch, ErrorTypeInvalidInput:
		return http.StatusUnprocessableEntity
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeRateLimited:
		return http.StatusTooManyRequests
	case ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the text shown inline to the user
func UserMessage(err error) string {
	appErr, ok := As(err)
	if !ok {
		return "prediction failed"
	}
	switch appErr.Type {
	case ErrorTypeInternal, ErrorTypeModelLoad, ErrorTypeExternal:
		return "prediction failed"
	}
	return appErr.Message
}
