// Package report derives daily and monthly attendance statistics from
// stored records.
package report

import (
	"context"
	"fmt"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/store"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

// Source is what the engine reads from.
type Source interface {
	store.RosterReader
	store.RecordReader
}

// Engine computes reports on demand. Nothing is cached or persisted.
type Engine struct {
	src Source
	log logger.Logger
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New creates an Engine over src.
func New(src Source, opts ...Option) *Engine {
	e := &Engine{src: src, log: logger.For("report")}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Daily is what was recorded for one date. Students without a record are
// left out of Entries and only counted in Unrecorded.
type Daily struct {
	Date       model.Date    `json:"date"`
	Entries    []model.Entry `json:"entries"`
	Stats      model.Stats   `json:"stats"`
	Unrecorded int           `json:"unrecorded"`
}

// DailySummary joins the records of date with the roster.
func (e *Engine) DailySummary(ctx context.Context, date model.Date) (Daily, error) {
	roster, err := e.src.Roster(ctx)
	if err != nil {
		return Daily{}, store.Unavailable("roster", err)
	}
	records, err := e.src.RecordsByDate(ctx, date)
	if err != nil {
		return Daily{}, store.Unavailable("records_by_date", err)
	}

	statuses := make(map[string]model.Status, len(records))
	for _, r := range records {
		if r.Date == date && r.Status.Persistable() {
			statuses[r.StudentID] = r.Status
		}
	}

	students := append([]model.Student(nil), roster...)
	model.SortStudents(students)

	out := Daily{Date: date, Entries: make([]model.Entry, 0, len(statuses))}
	for _, st := range students {
		status, ok := statuses[st.ID]
		if !ok {
			out.Unrecorded++
			continue
		}
		out.Entries = append(out.Entries, model.Entry{Student: st, Status: status})
		if status == model.StatusPresent {
			out.Stats.Present++
		} else {
			out.Stats.Absent++
		}
	}
	out.Stats.Total = len(out.Entries)

	metrics.RecordReport("daily")
	return out, nil
}

// MonthlyAggregate returns one row per roster student for the period,
// ordered by roll number then ID. Days without a record do not count.
func (e *Engine) MonthlyAggregate(ctx context.Context, period model.Period) ([]model.MonthlyAggregate, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	roster, err := e.src.Roster(ctx)
	if err != nil {
		return nil, store.Unavailable("roster", err)
	}
	records, err := e.src.RecordsByMonth(ctx, period)
	if err != nil {
		return nil, store.Unavailable("records_by_month", err)
	}

	type key struct {
		student string
		date    model.Date
	}
	latest := make(map[key]model.Status, len(records))
	for _, r := range records {
		if !period.Contains(r.Date) || !r.Status.Persistable() {
			continue
		}
		latest[key{r.StudentID, r.Date}] = r.Status
	}

	rows := make(map[string]*model.MonthlyAggregate, len(roster))
	out := make([]model.MonthlyAggregate, len(roster))
	students := append([]model.Student(nil), roster...)
	model.SortStudents(students)
	for i, st := range students {
		out[i] = model.MonthlyAggregate{StudentID: st.ID, Name: st.Name, RollNumber: st.RollNumber}
		rows[st.ID] = &out[i]
	}

	for k, status := range latest {
		row, ok := rows[k.student]
		if !ok {
			continue
		}
		row.Total++
		if status == model.StatusPresent {
			row.Present++
		} else {
			row.Absent++
		}
	}
	for i := range out {
		out[i].Percentage = model.Percentage(out[i].Present, out[i].Total)
	}

	if dropped := len(latest) - sum(out); dropped > 0 {
		e.log.Debug(ctx, "records for students outside the roster skipped",
			logger.String("period", period.String()),
			logger.Int("records", dropped),
		)
	}
	metrics.RecordReport("monthly")
	return out, nil
}

func sum(rows []model.MonthlyAggregate) int {
	n := 0
	for _, r := range rows {
		n += r.Total
	}
	return n
}

// Overall totals a monthly report.
func Overall(rows []model.MonthlyAggregate) model.MonthlyAggregate {
	var o model.MonthlyAggregate
	for _, r := range rows {
		o.Present += r.Present
		o.Absent += r.Absent
		o.Total += r.Total
	}
	o.Percentage = model.Percentage(o.Present, o.Total)
	return o
}

func (d Daily) String() string {
	return fmt.Sprintf("%s present=%d absent=%d unrecorded=%d", d.Date, d.Stats.Present, d.Stats.Absent, d.Unrecorded)
}
