package catalog

import (
	"errors"
	"fmt"
)

// MismatchReason says why an assignment does not fit its dataset.
type MismatchReason string

const (
	// ReasonMissingParam means a required parameter was not supplied.
	ReasonMissingParam MismatchReason = "missing parameter"
	// ReasonUnknownParam means a parameter the dataset does not declare was supplied.
	ReasonUnknownParam MismatchReason = "unknown parameter"
	// ReasonUnknownValue means the value is not in the dimension's legal set.
	ReasonUnknownValue MismatchReason = "unknown value"
	// ReasonInactiveValue means the value is known but no longer served.
	ReasonInactiveValue MismatchReason = "inactive value"
)

// SchemaMismatchError reports a parameter assignment that does not fit the
// dataset's declared schema.
type SchemaMismatchError struct {
	Dataset string
	Param   string
	Value   string
	Reason  MismatchReason
}

func (e *SchemaMismatchError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("schema mismatch: dataset %s: %s %q=%q", e.Dataset, e.Reason, e.Param, e.Value)
	}
	return fmt.Sprintf("schema mismatch: dataset %s: %s %q", e.Dataset, e.Reason, e.Param)
}

// IsSchemaMismatch reports whether err is or wraps a SchemaMismatchError.
func IsSchemaMismatch(err error) bool {
	var se *SchemaMismatchError
	return errors.As(err, &se)
}

// UnavailableDimensionError reports a dimension whose legal values have not
// been downloaded yet.
type UnavailableDimensionError struct {
	Dataset   string
	Dimension string
	Source    string
}

func (e *UnavailableDimensionError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("dataset %s: dimension %q has no values (source %q not downloaded)", e.Dataset, e.Dimension, e.Source)
	}
	return fmt.Sprintf("dataset %s: dimension %q has no values", e.Dataset, e.Dimension)
}
