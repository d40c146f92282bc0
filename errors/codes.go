package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Engine errors
const (
	// ErrCodeUsage indicates the caller misused a pipeline: a malformed stage
	// argument, or a write/flush after the pipeline has already flushed.
	ErrCodeUsage ErrorCode = "USAGE_ERROR"
	// ErrCodeStageFailed indicates a stage returned an error or a deferred
	// result was rejected.
	ErrCodeStageFailed ErrorCode = "STAGE_FAILED"
	// ErrCodeStopped is the graceful termination signal raised by Stop.
	ErrCodeStopped ErrorCode = "STOPPED"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInvalidConfig indicates configuration failed validation.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	// ErrCodeNotFound indicates a named resource (stage, definition) was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// A failed stage may be resubmitted by the caller; the engine itself never retries.
var retryableCodes = map[ErrorCode]bool{
	ErrCodeStageFailed: true,
	ErrCodeUsage:       false,
	ErrCodeStopped:     false,
	ErrCodeInternal:    false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
