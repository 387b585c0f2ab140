package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers unknown registration numbers, unknown revision
	// numbers, unknown attachment ids, and entities excluded by the caller's
	// confidentiality scope. These are deliberately indistinguishable so a
	// scope exclusion never leaks existence.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned when a revision-number collision persists after
	// the internal retry. The operation is safe to repeat.
	ErrConflict = errors.New("revision conflict")
)

// ValidationError is a user-facing rejection of malformed input: unknown
// document type, blank required fields, malformed metadata or predicates.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
