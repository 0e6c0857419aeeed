package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, fields map[string]interface{}) {
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(msg string, fields map[string]interface{}) {
	l.warns = append(l.warns, msg)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code   ErrorCode
		status int
	}{
		{ErrCodePredictionRequestFailed, http.StatusBadGateway},
		{ErrCodePredictionTransportFailed, http.StatusBadGateway},
		{ErrCodeInvalidFieldValue, http.StatusBadRequest},
		{ErrCodeUnknownField, http.StatusNotFound},
		{ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.code))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Nil(t, Normalize(nil))

	plain := stderrors.New("boom")
	got := Normalize(plain)
	assert.Equal(t, ErrCodeInternal, got.Code)
	assert.ErrorIs(t, got, plain)

	std := NewUnknownFieldError("weight")
	wrapped := fmt.Errorf("change field: %w", std)
	assert.Same(t, std, Normalize(wrapped))
	assert.Equal(t, ErrCodeUnknownField, CodeOf(wrapped))
}

func TestStandardError_UnwrapKeepsSentinel(t *testing.T) {
	sentinel := stderrors.New("REQUEST_FAILURE")
	err := NewPredictionRequestFailedError(fmt.Errorf("%w: status 500", sentinel))

	assert.ErrorIs(t, err, sentinel)
	assert.True(t, err.Retryable)
	assert.Equal(t, "PREDICTION", GetErrorCategory(err.Code))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidFieldValue))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeSchemaInvalid))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeSessionStoreFailed))
	assert.Equal(t, "INTERNAL", GetErrorCategory(ErrCodeInternal))
	assert.True(t, IsRetryableErrorCode(ErrCodePredictionTransportFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeInvalidFieldValue))
}

func TestErrorHandler_HandleHTTPError(t *testing.T) {
	log := &recordingLogger{}
	h := NewErrorHandler(log)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/fields/age", nil)
	h.HandleHTTPError(rec, req, NewInvalidFieldValueError("age", stderrors.New("out of range")))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Error StandardError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrCodeInvalidFieldValue, body.Error.Code)
	assert.Equal(t, "age", body.Error.Metadata["field"])
	assert.Len(t, log.warns, 1)
	assert.Empty(t, log.errors)

	rec = httptest.NewRecorder()
	h.HandleHTTPError(rec, req, stderrors.New("unexpected"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Len(t, log.errors, 1)
}
