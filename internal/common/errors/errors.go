// Package errors provides standardized error handling for the dashboard's
// HTTP and terminal surfaces.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodePredictionRequestFailed   ErrorCode = "PREDICTION_REQUEST_FAILED"
	ErrCodePredictionTransportFailed ErrorCode = "PREDICTION_TRANSPORT_FAILED"

	ErrCodeInvalidFieldValue ErrorCode = "INVALID_FIELD_VALUE"
	ErrCodeUnknownField      ErrorCode = "UNKNOWN_FIELD"
	ErrCodeSchemaInvalid     ErrorCode = "SCHEMA_INVALID"

	ErrCodeSessionStoreFailed ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause so sentinel checks keep working.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns e after attaching a metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewPredictionRequestFailedError is returned when the prediction endpoint
// answers with a non-success status or an unusable body. Retrying is left to
// the user.
func NewPredictionRequestFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePredictionRequestFailed,
		Message:   "Prediction request failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewPredictionTransportFailedError is returned when the prediction endpoint
// could not be reached at all.
func NewPredictionTransportFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePredictionTransportFailed,
		Message:   "Prediction endpoint unreachable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInvalidFieldValueError creates a non-retryable input error.
func NewInvalidFieldValueError(field string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidFieldValue,
		Message:   "Invalid field value",
		Details:   fmt.Sprintf("field: %s, error: %s", field, err.Error()),
		Retryable: false,
		Metadata:  map[string]interface{}{"field": field},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewUnknownFieldError creates a non-retryable input error.
func NewUnknownFieldError(field string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownField,
		Message:   "Field is not part of the input schema",
		Details:   fmt.Sprintf("field: %s", field),
		Retryable: false,
		Metadata:  map[string]interface{}{"field": field},
		Timestamp: time.Now().UTC(),
	}
}

// NewSchemaInvalidError creates a non-retryable schema definition error.
func NewSchemaInvalidError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchemaInvalid,
		Message:   "Input schema definition is invalid",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSessionStoreFailedError creates a retryable storage error.
func NewSessionStoreFailedError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStoreFailed,
		Message:   "Session store operation failed",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInternalError wraps anything that is not already a StandardError.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Error Conversion to HTTP
// ==========================

// HTTPStatusMapping maps internal error codes to response status codes.
var HTTPStatusMapping = map[ErrorCode]int{
	ErrCodePredictionRequestFailed:   http.StatusBadGateway,
	ErrCodePredictionTransportFailed: http.StatusBadGateway,
	ErrCodeInvalidFieldValue:         http.StatusBadRequest,
	ErrCodeUnknownField:              http.StatusNotFound,
	ErrCodeSchemaInvalid:             http.StatusInternalServerError,
	ErrCodeSessionStoreFailed:        http.StatusServiceUnavailable,
	ErrCodeInternal:                  http.StatusInternalServerError,
}

// HTTPStatus returns the response status for a code.
func HTTPStatus(code ErrorCode) int {
	if status, ok := HTTPStatusMapping[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// CodeOf returns the code carried by err, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// ==========================
// 4. Utility Functions
// ==========================

// IsRetryableErrorCode reports whether the user may simply try again.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodePredictionRequestFailed,
		ErrCodePredictionTransportFailed,
		ErrCodeSessionStoreFailed:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "PREDICTION"):
		return "PREDICTION"
	case strings.Contains(codeStr, "FIELD") || strings.Contains(codeStr, "SCHEMA"):
		return "VALIDATION"
	case strings.Contains(codeStr, "SESSION"):
		return "STORAGE"
	default:
		return "INTERNAL"
	}
}
