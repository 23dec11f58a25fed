package model

import (
	"fmt"
	"strings"
)

// Status is a student's attendance state.
type Status string

// Attendance statuses. Unmarked only exists inside a session and is never
// persisted.
const (
	StatusUnmarked Status = "unmarked"
	StatusPresent  Status = "present"
	StatusAbsent   Status = "absent"
)

// ParseStatus accepts the three statuses case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPresent, StatusAbsent, StatusUnmarked:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Persistable reports whether the status may be stored.
func (s Status) Persistable() bool {
	return s == StatusPresent || s == StatusAbsent
}

// Mark is an in-progress status for one student.
type Mark struct {
	StudentID string `json:"studentId"`
	Status    Status `json:"status"`
}

// Record is a persisted status for one student on one date.
type Record struct {
	StudentID string `json:"studentId"`
	Date      Date   `json:"date"`
	Status    Status `json:"status"`
}

// Stats counts marks or records. Present+Absent equals Total only when
// nothing is unmarked.
type Stats struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Total   int `json:"total"`
}

// Entry pairs a student with a status, for session views and daily summaries.
type Entry struct {
	Student
	Status Status `json:"status"`
}
