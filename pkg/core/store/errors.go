package store

import (
	"errors"
	"fmt"
)

var (
	// ErrReservedColumn is returned when a checked insertion targets a column
	// the host graph model owns.
	ErrReservedColumn = errors.New("reserved column name")
	// ErrTypeMismatch is returned when a key already holds values of another type.
	ErrTypeMismatch = errors.New("attribute type mismatch")
	// ErrInvalidBounds is returned for start > end or NaN bounds.
	ErrInvalidBounds = errors.New("invalid interval bounds")
)

// ValidationError reports a rejected checked insertion. The store is left
// unchanged when one is returned.
type ValidationError struct {
	Row    uint64
	Column string
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("attribute %d/%s: %v: %s", e.Row, e.Column, e.Err, e.Detail)
	}
	return fmt.Sprintf("attribute %d/%s: %v", e.Row, e.Column, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
