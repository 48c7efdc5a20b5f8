package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Input errors. These are rejected before any model invocation and are
// never retried.
const (
	// ErrCodeUnsupportedFormat indicates the audio codec or container cannot be decoded.
	ErrCodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	// ErrCodeDurationExceeded indicates the audio is longer than the configured maximum.
	ErrCodeDurationExceeded ErrorCode = "DURATION_EXCEEDED"
	// ErrCodePayloadTooLarge indicates the raw upload exceeds the configured size limit.
	ErrCodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"
	// ErrCodeMalformedInput indicates a timing invariant violation (e.g. start > end).
	ErrCodeMalformedInput ErrorCode = "MALFORMED_INPUT"
)

// Capability errors. Failures of the model-inference backends, wrapped
// with stage context.
const (
	// ErrCodeDiarizationError indicates the diarization backend failed.
	ErrCodeDiarizationError ErrorCode = "DIARIZATION_ERROR"
	// ErrCodeTranscriptionError indicates the transcription backend failed.
	ErrCodeTranscriptionError ErrorCode = "TRANSCRIPTION_ERROR"
)

// Export errors
const (
	// ErrCodeNotReady indicates export was requested for a job that is not completed.
	ErrCodeNotReady ErrorCode = "NOT_READY"
	// ErrCodeUnknownFormat indicates an unsupported export format string.
	ErrCodeUnknownFormat ErrorCode = "UNKNOWN_FORMAT"
)

// Resource/storage errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeStoreError indicates the job state store is unavailable or failed.
	ErrCodeStoreError ErrorCode = "STORE_ERROR"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeDiarizationError:   true,
	ErrCodeTranscriptionError: true,
	ErrCodeStoreError:         true,
}

// IsRetryableCode returns true if the error code indicates that a resubmission
// of the same input may succeed.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
