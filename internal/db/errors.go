package db

import "errors"

// ErrNotFound is returned (wrapped in a StoreError) by point lookups that
// match no row.
var ErrNotFound = errors.New("activity not found")

// StoreError wraps any failure of the underlying database. Op names the
// store operation that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "store " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
