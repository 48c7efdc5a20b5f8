// Package errors provides unified error handling for the transcription
// service. It implements structured error types with error codes, HTTP status
// mapping, and retryable detection following RFC 7807.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if a resubmission of the same input can succeed.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Input error constructors ---

// UnsupportedFormat creates a new AppError for an undecodable audio format.
func UnsupportedFormat(reason string, supported []string) *AppError {
	return &AppError{
		Code: ErrCodeUnsupportedFormat, Message: fmt.Sprintf("Unsupported audio format: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"supported_formats": supported},
	}
}

// DurationExceeded creates a new AppError for audio longer than the limit.
func DurationExceeded(got, limit time.Duration) *AppError {
	return &AppError{
		Code:    ErrCodeDurationExceeded,
		Message: fmt.Sprintf("Audio too long: %.1fs exceeds the %.1fs limit.", got.Seconds(), limit.Seconds()),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"duration_seconds": got.Seconds(), "limit_seconds": limit.Seconds()},
	}
}

// PayloadTooLarge creates a new AppError for an oversized upload.
func PayloadTooLarge(size, limit int64) *AppError {
	return &AppError{
		Code:    ErrCodePayloadTooLarge,
		Message: fmt.Sprintf("File too large. Maximum: %dMB", limit/(1024*1024)),
		HTTPStatus: http.StatusRequestEntityTooLarge, Retryable: false,
		Details: map[string]any{"size_bytes": size, "limit_bytes": limit},
	}
}

// MalformedInput creates a new AppError for a timing invariant violation.
// These are treated as defects, never silently corrected.
func MalformedInput(reason string) *AppError {
	return &AppError{
		Code: ErrCodeMalformedInput, Message: fmt.Sprintf("Malformed input: %s", reason),
		HTTPStatus: http.StatusInternalServerError, Retryable: false,
	}
}

// --- Capability error constructors ---

// DiarizationFailed wraps a diarization backend failure with stage context.
func DiarizationFailed(cause error) *AppError {
	return &AppError{
		Code: ErrCodeDiarizationError, Message: "Speaker diarization failed.",
		HTTPStatus: http.StatusBadGateway, Retryable: true, Cause: cause,
	}
}

// TranscriptionFailed wraps a transcription backend failure with stage context.
func TranscriptionFailed(cause error) *AppError {
	return &AppError{
		Code: ErrCodeTranscriptionError, Message: "Speech transcription failed.",
		HTTPStatus: http.StatusBadGateway, Retryable: true, Cause: cause,
	}
}

// --- Export error constructors ---

// NotReady creates a new AppError for an export attempt on a non-completed job.
func NotReady(status string) *AppError {
	return &AppError{
		Code: ErrCodeNotReady, Message: fmt.Sprintf("Job not completed. Current status: %s", status),
		HTTPStatus: http.StatusConflict, Retryable: false,
		Details: map[string]any{"status": status},
	}
}

// UnknownFormat creates a new AppError for an unsupported export format.
func UnknownFormat(format string, supported []string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownFormat, Message: fmt.Sprintf("Unsupported export format: %q", format),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"supported_formats": supported},
	}
}

// --- Resource/storage error constructors ---

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// StoreError creates a new AppError for a job store failure.
func StoreError(op string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeStoreError, Message: "The job store encountered an error. Please try again.",
		HTTPStatus: http.StatusInternalServerError, Retryable: true,
		Details: map[string]any{"operation": op}, Cause: cause,
	}
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred. Please try again or contact support.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
