package repository

import "errors"

// ErrMissingDSN is returned by OpenPostgres without a connection string.
// Domain failures use the store package sentinels.
var ErrMissingDSN = errors.New("postgres dsn is empty")
