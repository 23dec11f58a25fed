// Package store defines the attendance store the core talks to, and the
// error taxonomy every adapter maps its failures onto.
package store

import (
	"context"
	"fmt"

	"github.com/okian/rollcall/internal/domain/model"
)

// RosterReader supplies the students of a session.
type RosterReader interface {
	Roster(ctx context.Context) ([]model.Student, error)
}

// RecordReader reads persisted attendance.
type RecordReader interface {
	// RecordsByDate returns the records of one date, empty if none.
	RecordsByDate(ctx context.Context, date model.Date) ([]model.Record, error)
	// RecordsByMonth returns every record of the month across all students.
	RecordsByMonth(ctx context.Context, period model.Period) ([]model.Record, error)
}

// RecordWriter commits a whole record set for one date.
type RecordWriter interface {
	// Create fails with ErrAlreadyExists if a set for the date exists.
	Create(ctx context.Context, date model.Date, records []model.Record) error
	// Update replaces the set for the date; ErrNotFound if none exists.
	Update(ctx context.Context, date model.Date, records []model.Record) error
}

// Store is the full attendance store.
type Store interface {
	RosterReader
	RecordReader
	RecordWriter
}

// RosterWriter is implemented by backends that own the roster.
type RosterWriter interface {
	AddStudent(ctx context.Context, name string, rollNumber int) (model.Student, error)
	UpdateStudent(ctx context.Context, student model.Student) (model.Student, error)
	DeleteStudent(ctx context.Context, id string) error
}

// ValidateRecords checks that every record belongs to date, carries a
// storable status and that no student appears twice.
func ValidateRecords(date model.Date, records []model.Record) error {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.StudentID == "" {
			return fmt.Errorf("%w: empty student id", ErrInvalidRecords)
		}
		if r.Date != date {
			return fmt.Errorf("%w: record for %s dated %s, expected %s", ErrInvalidRecords, r.StudentID, r.Date, date)
		}
		if !r.Status.Persistable() {
			return fmt.Errorf("%w: status %q for %s", ErrInvalidRecords, r.Status, r.StudentID)
		}
		if _, dup := seen[r.StudentID]; dup {
			return fmt.Errorf("%w: duplicate student %s", ErrInvalidRecords, r.StudentID)
		}
		seen[r.StudentID] = struct{}{}
	}
	return nil
}
