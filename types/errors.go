package types

import (
	"errors"
	"fmt"
)

var ErrUnknownShape = errors.New("unknown data shape (want array of records or envelope with 'data' array)")

// ValidationError describes a record that could not be normalized at all.
// The record is dropped; the rest of the batch proceeds.
type ValidationError struct {
	Index  int // 0-based position in the input batch
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("record %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("record %d: invalid %s %q: %s", e.Index, e.Field, e.Value, e.Reason)
}

// ParseError describes a timestamp that could not be parsed.
// The raw value is passed through unchanged.
type ParseError struct {
	Index int
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("record %d: unparseable timestamp %q", e.Index, e.Value)
}
