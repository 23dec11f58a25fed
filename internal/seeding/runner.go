// Package seeding fills a running service with a roster and attendance
// history and verifies what the reports make of it.
package seeding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/okian/rollcall/internal/adapters/http/client"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/store"
	"github.com/okian/rollcall/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Backend is the store surface the seeder writes through.
type Backend interface {
	store.Store
	store.RosterWriter
}

// Run executes the complete seeding run.
func Run(ctx context.Context, cfg *Config) error {
	normalize(cfg)
	log := logger.For("seed")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting rollcall seed",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("students", cfg.Students),
		logger.Int("days", cfg.Days),
		logger.Int("workers", cfg.Workers),
		logger.Float64("presentRatio", cfg.PresentRatio))

	api := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	backend, err := client.New(cfg.BaseURL,
		client.WithToken(cfg.Token),
		client.WithTimeout(cfg.Timeout),
		client.WithLogger(log.Named("client")),
	)
	if err != nil {
		return fmt.Errorf("build store client: %w", err)
	}

	// Step 1: Check service health
	if err := api.health(ctx); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Make sure the roster is big enough
	roster, err := ensureRoster(ctx, backend, cfg.Students, stats)
	if err != nil {
		return fmt.Errorf("roster setup failed: %w", err)
	}

	today := model.DateOf(time.Now().In(cfg.Location))

	// Step 3: Backfill past days through the store API
	plans, err := backfill(ctx, backend, roster, pastDays(today, cfg.Days), cfg, stats)
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}

	// Step 4: Take today's attendance through a session
	todayPlan, err := takeAttendance(ctx, api, today, cfg.PresentRatio)
	if err != nil {
		return fmt.Errorf("session workflow failed: %w", err)
	}
	stats.SessionMode = todayPlan.Mode
	plans = append(plans, todayPlan)

	// Step 5: Verify
	if err := verifyDays(ctx, backend, plans); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}
	months, err := verifyMonthly(ctx, api, roster, plans)
	if err != nil {
		return fmt.Errorf("report verification failed: %w", err)
	}
	stats.MonthsVerified = months

	// Step 6: Save the plan
	if err := savePlan(ctx, cfg.OutputFile, plans); err != nil {
		log.Warn(ctx, "failed to save plan to file", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	log.Info(ctx, "seed completed successfully")
	return nil
}

func normalize(cfg *Config) {
	if cfg.Students <= 0 {
		cfg.Students = DefaultStudents
	}
	if cfg.Days < 0 {
		cfg.Days = DefaultDays
	}
	if cfg.PresentRatio < 0 || cfg.PresentRatio > 1 {
		cfg.PresentRatio = DefaultPresentRatio
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
}

// ensureRoster adds generated students until the roster holds want.
func ensureRoster(ctx context.Context, b Backend, want int, stats *Stats) ([]model.Student, error) {
	roster, err := b.Roster(ctx)
	if err != nil {
		return nil, err
	}

	nextRoll := 1
	for _, st := range roster {
		if st.RollNumber >= nextRoll {
			nextRoll = st.RollNumber + 1
		}
	}

	for added := 0; len(roster)+added < want; added++ {
		st, err := b.AddStudent(ctx, studentName(), nextRoll)
		if err != nil {
			return nil, fmt.Errorf("add student %d: %w", nextRoll, err)
		}
		stats.StudentsAdded++
		nextRoll++
		logger.For("seed").Debug(ctx, "student added", logger.String("id", st.ID), logger.Int("rollNumber", st.RollNumber))
	}

	if stats.StudentsAdded > 0 {
		if roster, err = b.Roster(ctx); err != nil {
			return nil, err
		}
	}
	logger.For("seed").Info(ctx, "roster ready", logger.Int("students", len(roster)), logger.Int("added", stats.StudentsAdded))
	return roster, nil
}

// backfill writes one full record set per date, replacing sets that exist.
func backfill(ctx context.Context, b store.RecordWriter, roster []model.Student, dates []model.Date, cfg *Config, stats *Stats) ([]DayPlan, error) {
	plans := make([]DayPlan, len(dates))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, date := range dates {
		g.Go(func() error {
			records := generateDay(roster, date, cfg.PresentRatio)
			mode, err := writeDay(gctx, b, date, records)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.DaysFailed++
				return fmt.Errorf("write %s: %w", date, err)
			}
			if mode == "created" {
				stats.DaysCreated++
			} else {
				stats.DaysUpdated++
			}
			stats.RecordsWritten += len(records)
			plans[i] = DayPlan{Date: date, Mode: mode, Records: records}

			if cfg.Verbose {
				logger.For("seed").Info(gctx, "day written", logger.Date("date", date), logger.String("mode", mode))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.For("seed").Info(ctx, "backfill completed",
		logger.Int("created", stats.DaysCreated),
		logger.Int("updated", stats.DaysUpdated),
		logger.Int("records", stats.RecordsWritten))
	return plans, nil
}

// writeDay creates the set, or replaces it if the date already has one.
func writeDay(ctx context.Context, b store.RecordWriter, date model.Date, records []model.Record) (string, error) {
	err := b.Create(ctx, date, records)
	if err == nil {
		return "created", nil
	}
	if !errors.Is(err, store.ErrAlreadyExists) {
		return "", err
	}
	if err := b.Update(ctx, date, records); err != nil {
		return "", err
	}
	return "updated", nil
}

// takeAttendance opens a session for date, marks everyone and submits.
func takeAttendance(ctx context.Context, api *HTTPClient, date model.Date, presentRatio float64) (DayPlan, error) {
	view, err := api.openSession(ctx, date)
	if err != nil {
		return DayPlan{}, err
	}
	defer func() {
		if err := api.closeSession(context.WithoutCancel(ctx), view.ID); err != nil {
			logger.For("seed").Warn(ctx, "closing session failed", logger.String("session", view.ID), logger.Error(err))
		}
	}()

	if view.Locked {
		return DayPlan{}, fmt.Errorf("%w: %s is locked", ErrSessionRejected, date)
	}

	for _, e := range view.Entries {
		res, err := api.mark(ctx, view.ID, e.ID, randomStatus(presentRatio))
		if err != nil {
			return DayPlan{}, err
		}
		if !res.Applied {
			return DayPlan{}, fmt.Errorf("%w: mark for %s not applied", ErrSessionRejected, e.ID)
		}
		view = res.Session
	}
	if !view.Complete {
		return DayPlan{}, fmt.Errorf("%w: session incomplete after marking", ErrSessionRejected)
	}

	result, err := api.submit(ctx, view.ID)
	if err != nil {
		return DayPlan{}, err
	}

	logger.For("seed").Info(ctx, "attendance submitted",
		logger.Date("date", date),
		logger.String("mode", result.Mode),
		logger.Int("present", view.Stats.Present),
		logger.Int("absent", view.Stats.Absent))
	return DayPlan{Date: result.Date, Mode: result.Mode, Records: result.Records}, nil
}

// savePlan writes the plans to a JSON file.
func savePlan(ctx context.Context, filename string, plans []DayPlan) error {
	if filename == "" {
		filename = "seed_plan_" + time.Now().Format("20060102_150405") + ".json"
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(plans, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	if err := os.WriteFile(filename, data, logFilePermission); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}

	logger.For("seed").Info(ctx, "plan saved to file", logger.String("filename", filename))
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	logger.For("seed").Info(ctx, "final statistics",
		logger.Int("studentsAdded", stats.StudentsAdded),
		logger.Int("daysCreated", stats.DaysCreated),
		logger.Int("daysUpdated", stats.DaysUpdated),
		logger.Int("daysFailed", stats.DaysFailed),
		logger.Int("recordsWritten", stats.RecordsWritten),
		logger.String("sessionMode", stats.SessionMode),
		logger.Int("monthsVerified", stats.MonthsVerified),
		logger.Duration("duration", stats.Duration))
}
