package seeding

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/store"
	"github.com/okian/rollcall/pkg/logger"
)

// verifyDays reads every planned date back and compares it to what was written.
func verifyDays(ctx context.Context, src store.RecordReader, plans []DayPlan) error {
	for _, p := range plans {
		got, err := src.RecordsByDate(ctx, p.Date)
		if err != nil {
			return fmt.Errorf("read back %s: %w", p.Date, err)
		}
		if err := sameRecords(p.Records, got); err != nil {
			return fmt.Errorf("date %s: %w", p.Date, err)
		}
	}
	return nil
}

func sameRecords(want, got []model.Record) error {
	if len(want) != len(got) {
		return fmt.Errorf("%w: want %d records, got %d", ErrMismatch, len(want), len(got))
	}
	byID := make(map[string]model.Status, len(got))
	for _, r := range got {
		byID[r.StudentID] = r.Status
	}
	for _, r := range want {
		if s, ok := byID[r.StudentID]; !ok || s != r.Status {
			return fmt.Errorf("%w: student %s want %s, got %q", ErrMismatch, r.StudentID, r.Status, s)
		}
	}
	return nil
}

// verifyMonthly checks report invariants and that every planned mark is
// counted for its student.
func verifyMonthly(ctx context.Context, c *HTTPClient, roster []model.Student, plans []DayPlan) (int, error) {
	expected := make(map[model.Period]map[string]model.Stats)
	for _, p := range plans {
		period := model.PeriodOf(p.Date)
		if expected[period] == nil {
			expected[period] = make(map[string]model.Stats)
		}
		for _, r := range p.Records {
			st := expected[period][r.StudentID]
			st.Total++
			if r.Status == model.StatusPresent {
				st.Present++
			} else {
				st.Absent++
			}
			expected[period][r.StudentID] = st
		}
	}

	periods := make([]model.Period, 0, len(expected))
	for p := range expected {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].First().Compare(periods[j].First()) < 0 })

	for _, period := range periods {
		rows, err := c.monthly(ctx, period)
		if err != nil {
			return 0, fmt.Errorf("monthly report %s: %w", period, err)
		}
		if len(rows) != len(roster) {
			return 0, fmt.Errorf("%w: %s has %d rows for %d students", ErrMismatch, period, len(rows), len(roster))
		}
		for _, row := range rows {
			if err := checkRow(row, expected[period][row.StudentID]); err != nil {
				return 0, fmt.Errorf("%s: %w", period, err)
			}
		}
		logger.For("seed").Info(ctx, "monthly report verified",
			logger.String("period", period.String()),
			logger.Int("rows", len(rows)))
	}
	return len(periods), nil
}

// checkRow allows more than was planned since the month may hold earlier data.
func checkRow(row model.MonthlyAggregate, planned model.Stats) error {
	if row.Present+row.Absent != row.Total {
		return fmt.Errorf("%w: %s present %d + absent %d != total %d", ErrMismatch, row.StudentID, row.Present, row.Absent, row.Total)
	}
	if want := model.Percentage(row.Present, row.Total); row.Percentage != want {
		return fmt.Errorf("%w: %s percentage %d, want %d", ErrMismatch, row.StudentID, row.Percentage, want)
	}
	if row.Present < planned.Present || row.Absent < planned.Absent {
		return fmt.Errorf("%w: %s counts %d/%d below written %d/%d", ErrMismatch, row.StudentID,
			row.Present, row.Absent, planned.Present, planned.Absent)
	}
	return nil
}
