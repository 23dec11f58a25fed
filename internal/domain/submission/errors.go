package submission

import "errors"

// Submission errors. Store failures surface as *store.UnavailableError.
var (
	// ErrIncompleteMarks means at least one student is still unmarked.
	ErrIncompleteMarks = errors.New("submission: every student must be marked")
	// ErrLockedDate means the edit window for the date has closed.
	ErrLockedDate = errors.New("submission: date is locked")
	// ErrEmptyRoster means there is nobody to record.
	ErrEmptyRoster = errors.New("submission: roster is empty")
)
