package model

import "math"

// MonthlyAggregate summarises one student's records over a month.
type MonthlyAggregate struct {
	StudentID  string `json:"studentId"`
	Name       string `json:"name"`
	RollNumber int    `json:"rollNumber"`
	Present    int    `json:"present"`
	Absent     int    `json:"absent"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

// Percentage returns round(present/total*100), or 0 when total is 0.
func Percentage(present, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(present) / float64(total) * 100))
}
