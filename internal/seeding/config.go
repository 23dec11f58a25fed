package seeding

import (
	"time"

	"github.com/okian/rollcall/internal/domain/model"
)

// Config holds configuration for a seeding run.
type Config struct {
	BaseURL      string         // Base URL of the service
	Token        string         // Bearer token for the store endpoints
	Students     int            // Roster size to ensure
	Days         int            // Past days to backfill through the store API
	PresentRatio float64        // Probability a generated mark is present
	Workers      int            // Concurrent backfill requests
	Timeout      time.Duration  // HTTP request timeout
	Location     *time.Location // Zone "today" is computed in
	OutputFile   string         // Output file for the written plan
	Verbose      bool           // Log every written day
}

// DayPlan is the record set written for one date.
type DayPlan struct {
	Date    model.Date     `json:"date"`
	Mode    string         `json:"mode"`
	Records []model.Record `json:"records"`
}

// Stats holds run statistics.
type Stats struct {
	StudentsAdded  int
	DaysCreated    int
	DaysUpdated    int
	DaysFailed     int
	RecordsWritten int
	SessionMode    string
	MonthsVerified int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
