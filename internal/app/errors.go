package service

import "errors"

// Sentinel errors returned by the service.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrRosterReadOnly  = errors.New("roster is read-only on this backend")
)
