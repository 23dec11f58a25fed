// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var studentNamePattern = regexp.MustCompile(`^[A-Za-z.\s]+$`)

// Student is a roster entry.
type Student struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	RollNumber int    `json:"rollNumber"`
}

// NormalizeName trims surrounding whitespace from a student name.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// ValidateStudent checks the name is letters, dots and spaces and the roll
// number is positive. Duplicate roll numbers are allowed.
func ValidateStudent(name string, rollNumber int) error {
	name = NormalizeName(name)
	if name == "" || !studentNamePattern.MatchString(name) {
		return fmt.Errorf("%w: name %q", ErrInvalidStudent, name)
	}
	if rollNumber < 1 {
		return fmt.Errorf("%w: roll number %d", ErrInvalidStudent, rollNumber)
	}
	return nil
}

// SortStudents orders students by roll number, then by ID.
func SortStudents(students []Student) {
	sort.SliceStable(students, func(i, j int) bool {
		return lessByRoll(students[i], students[j])
	})
}

func lessByRoll(a, b Student) bool {
	if a.RollNumber != b.RollNumber {
		return a.RollNumber < b.RollNumber
	}
	return a.ID < b.ID
}
