package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by the store when a point lookup matches nothing
	ErrNotFound = errors.New("record not found")

	// ErrInvalidID rejects identifiers that are not 24-hex object ids
	ErrInvalidID = errors.New("invalid record id")

	// ErrUnsupportedCollection is returned for collections without a ledger layout
	ErrUnsupportedCollection = errors.New("unsupported collection")
)

// ValidationError aborts the mutation that triggered it. It is the only error
// class allowed to change the outcome of the primary request
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err carries a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
