package session

import "errors"

// Session errors.
var (
	// ErrStale is returned when a fetch was superseded by a later date
	// selection or by closing the session. Its result was discarded.
	ErrStale = errors.New("session: result superseded by a newer date selection")
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session: closed")
)
