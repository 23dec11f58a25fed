package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/rollcall/internal/seeding"
)

// Default configuration constants.
const (
	defaultTimeout = 30 * time.Second
	defaultRunTime = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		token    = flag.String("token", "", "Bearer token for the store endpoints")
		students = flag.Int("students", seeding.DefaultStudents, "Roster size to ensure")
		days     = flag.Int("days", seeding.DefaultDays, "Past days to backfill")
		present  = flag.Float64("present", seeding.DefaultPresentRatio, "Probability of a present mark")
		workers  = flag.Int("workers", seeding.DefaultWorkers, "Concurrent backfill requests")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		tz       = flag.String("tz", "", "Time zone used to compute today (default local)")
		output   = flag.String("output", "", "Output file for the written plan")
		logFile  = flag.String("log", "", "Log file for seed output")
		verbose  = flag.Bool("verbose", false, "Log every written day")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seeding.ShowHelp()
		return
	}

	if err := seeding.SetupLogging(*logFile); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	loc := time.Local
	if *tz != "" {
		l, err := time.LoadLocation(*tz)
		if err != nil {
			_, _ = os.Stderr.WriteString("Invalid time zone: " + err.Error() + "\n")
			os.Exit(1)
		}
		loc = l
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTime)
	defer cancel()

	cfg := &seeding.Config{
		BaseURL:      *baseURL,
		Token:        *token,
		Students:     *students,
		Days:         *days,
		PresentRatio: *present,
		Workers:      *workers,
		Timeout:      *timeout,
		Location:     loc,
		OutputFile:   *output,
		Verbose:      *verbose,
	}

	if err := seeding.Run(ctx, cfg); err != nil {
		_, _ = os.Stderr.WriteString("Seed failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // cancel already called
	}
}
