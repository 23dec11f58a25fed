package seeding

import "errors"

var (
	// ErrMismatch is returned when data read back differs from what was written.
	ErrMismatch = errors.New("seeded data mismatch")
	// ErrSessionRejected is returned when the session API refuses a mark or submit.
	ErrSessionRejected = errors.New("session rejected seeding")
)
