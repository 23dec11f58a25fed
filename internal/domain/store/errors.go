package store

import (
	"errors"
	"fmt"
)

// Store errors.
var (
	// ErrAlreadyExists is returned by Create when the date already has records.
	ErrAlreadyExists = errors.New("attendance already exists for date")
	// ErrNotFound is returned by Update when the date has no records, and by
	// roster writes for unknown students.
	ErrNotFound = errors.New("attendance not found")
	// ErrInvalidRecords rejects malformed record sets.
	ErrInvalidRecords = errors.New("invalid attendance records")
	// ErrUnavailable matches any *UnavailableError.
	ErrUnavailable = errors.New("attendance store unavailable")
)

// UnavailableError is a store failure surfaced to callers. The whole
// operation failed and is safe to retry.
type UnavailableError struct {
	Op  string
	Err error
}

// Unavailable wraps err for op. A nil err stays nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return err
	}
	return &UnavailableError{Op: op, Err: err}
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrUnavailable, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrUnavailable) match.
func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }
