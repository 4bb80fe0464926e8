package collector

import (
	"errors"
	"fmt"
)

var errMissing = errors.New("required field is missing")

// TransformError reports a fetched record that does not have the expected
// shape. Retrying cannot fix it, so it is never retried.
type TransformError struct {
	// Record names the payload, e.g. "user" or "vehicle summary".
	Record string
	// Index is the position within the list, or -1 for single objects.
	Index int
	// Field is the JSON field at fault, if known.
	Field string
	Err   error
}

func (e *TransformError) Error() string {
	where := e.Record
	if e.Index >= 0 {
		where = fmt.Sprintf("%s[%d]", e.Record, e.Index)
	}
	if e.Field != "" {
		return fmt.Sprintf("transform %s: field %s: %v", where, e.Field, e.Err)
	}
	return fmt.Sprintf("transform %s: %v", where, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a failed write to the data store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func withIndex(err error, i int) error {
	var te *TransformError
	if errors.As(err, &te) {
		te.Index = i
	}
	return err
}
