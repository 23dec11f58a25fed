package client

import "errors"

// Client errors.
var (
	ErrMissingBaseURL = errors.New("remote store base url is empty")
	// ErrUnexpectedStatus wraps responses the store contract does not define.
	ErrUnexpectedStatus = errors.New("unexpected status from remote store")
)
