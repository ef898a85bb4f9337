package audit

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by read/delete operations.
var (
	// ErrNotFound reports an unknown job id.
	ErrNotFound = errors.New("audit job not found")
	// ErrForbidden reports a non-owner accessing a non-public job.
	ErrForbidden = errors.New("not authorized for this audit job")
)

// ValidationError rejects malformed input before any job record is created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for the named field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// QuotaError rejects a submission because the requester is over their plan's
// monthly limit. It is a pre-flight denial, not a pipeline failure.
type QuotaError struct {
	Reason string
}

func (e *QuotaError) Error() string {
	return e.Reason
}

// IsQuota reports whether err is a QuotaError.
func IsQuota(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}
