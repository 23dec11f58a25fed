package model

import "errors"

// Domain validation errors.
var (
	ErrInvalidDate    = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidStatus  = errors.New("invalid attendance status")
	ErrInvalidPeriod  = errors.New("invalid month or year")
	ErrInvalidStudent = errors.New("invalid student")
)
