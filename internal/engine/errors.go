package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/statfetch/internal/catalog"
)

// RuntimeError represents an error that stops a queue operation or a run.
//
// Per-request transport, parse and sink failures are not RuntimeErrors: they are
// recorded as Error events and the run continues. A RuntimeError means the
// batch itself could not proceed:
//   - Configuration: a required collaborator or setting is missing
//   - Schema mismatch: a Request could not be built from its assignment
//   - Enumeration: a dimension has no legal values yet
//   - Journal: the history file could not be written
//   - Rate limited: the remote service asked us to stop
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Dataset identifies the affected dataset.
	Dataset string

	// Fingerprint identifies the affected request, when there is one.
	Fingerprint string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	ErrCodeConfiguration  RuntimeErrorCode = "CONFIGURATION"
	ErrCodeSchemaMismatch RuntimeErrorCode = "SCHEMA_MISMATCH"
	ErrCodeEnumeration    RuntimeErrorCode = "ENUMERATION"
	ErrCodeJournal        RuntimeErrorCode = "JOURNAL"
	ErrCodeRateLimited    RuntimeErrorCode = "RATE_LIMITED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Dataset != "" {
		msg += fmt.Sprintf(" (dataset=%s)", e.Dataset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error { return e.Err }

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsRateLimited reports whether err stopped a run because of rate limiting.
func IsRateLimited(err error) bool { return hasCode(err, ErrCodeRateLimited) }

// IsJournalError reports whether err is a journal read or write failure.
func IsJournalError(err error) bool { return hasCode(err, ErrCodeJournal) }

// IsEnumerationError reports whether err came from enumerating a dataset.
func IsEnumerationError(err error) bool { return hasCode(err, ErrCodeEnumeration) }

// IsConfigurationError reports whether err is a configuration failure.
func IsConfigurationError(err error) bool { return hasCode(err, ErrCodeConfiguration) }

// IsSchemaMismatch reports whether err is a schema mismatch, either as a
// RuntimeError or as the catalog error it wraps.
func IsSchemaMismatch(err error) bool {
	return hasCode(err, ErrCodeSchemaMismatch) || catalog.IsSchemaMismatch(err)
}

// NewSchemaMismatchError wraps a catalog validation failure.
func NewSchemaMismatchError(dataset string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeSchemaMismatch,
		Message: "parameter assignment does not match dataset",
		Dataset: dataset,
		Err:     err,
	}
}

// NewEnumerationError reports a dataset that cannot be enumerated yet.
func NewEnumerationError(dataset string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeEnumeration,
		Message: "cannot enumerate dataset",
		Dataset: dataset,
		Err:     err,
	}
}

// NewJournalError reports a journal that could not be written.
func NewJournalError(dataset, fp string, err error) *RuntimeError {
	return &RuntimeError{
		Code:        ErrCodeJournal,
		Message:     "journal append failed",
		Dataset:     dataset,
		Fingerprint: fp,
		Err:         err,
	}
}

// NewRateLimitedError reports a run stopped by the remote service.
func NewRateLimitedError(dataset, fp string, err error) *RuntimeError {
	return &RuntimeError{
		Code:        ErrCodeRateLimited,
		Message:     "remote service is rate limiting; run stopped",
		Dataset:     dataset,
		Fingerprint: fp,
		Err:         err,
	}
}

// NewConfigurationError reports a missing collaborator or setting.
func NewConfigurationError(msg string) *RuntimeError {
	return &RuntimeError{Code: ErrCodeConfiguration, Message: msg}
}

// rateLimiter is implemented by transport errors that signal rate limiting.
type rateLimiter interface {
	RateLimited() bool
}

// isRateLimitSignal reports whether a transport error asks the run to stop.
func isRateLimitSignal(err error) bool {
	var rl rateLimiter
	return errors.As(err, &rl) && rl.RateLimited()
}
