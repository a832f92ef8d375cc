package domain

import (
	"fmt"
	"time"
)

// ErrorCode enumerates the processing-error codes the core can surface in
// a structured ConvertResult, per spec §7.
type ErrorCode string

const (
	ErrValidationRejected    ErrorCode = "VALIDATION_REJECTED"
	ErrResourceConstruction  ErrorCode = "RESOURCE_CONSTRUCTION_FAILED"
	ErrBundleIntegrity       ErrorCode = "BUNDLE_INTEGRITY_FAILED"
	ErrInternal              ErrorCode = "INTERNAL_ERROR"
)

// ProcessingError is the core's structured-failure type, shaped after the
// teacher's MCPError. ConvertResult does not carry it: a processing_failed
// result reports its failure only as the FailureField string.
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	Field     string
	RequestID string
	Timestamp time.Time
}

func (e *ProcessingError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewProcessingError constructs a ProcessingError carrying the request id
// the failure occurred under, so the host can correlate logs to responses.
func NewProcessingError(code ErrorCode, message, requestID string) *ProcessingError {
	return &ProcessingError{Code: code, Message: message, RequestID: requestID, Timestamp: nowFunc()}
}

// WithField attaches the offending field name (e.g. "birth_date") and
// returns e for chaining.
func (e *ProcessingError) WithField(field string) *ProcessingError {
	e.Field = field
	return e
}

// ValidationError reports a malformed input to the pipeline's own API
// (e.g. an empty text argument), distinct from a ValidationIssue emitted
// by C2 against the clinical content of a well-formed request.
type ValidationError struct {
	Field   string
	Message string
	Value   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s (value=%q)", e.Field, e.Message, e.Value)
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message, value string) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// nowFunc is indirected so tests can pin the clock.
var nowFunc = time.Now
