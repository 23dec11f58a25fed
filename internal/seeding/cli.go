package seeding

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/rollcall/pkg/logger"
)

// SetupLogging sends log output to stdout and to logFile.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if logFile == "" {
		logFile = "seed_log_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the seed tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Rollcall Seed Tool
==================

Fills a running rollcall service with a roster and attendance history, takes
today's attendance through the session API and checks the monthly report.

Usage:
  go run ./cmd/seed [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -token string
        Bearer token for the store endpoints
  -students int
        Roster size to ensure (default 30)
  -days int
        Past days to backfill (default 20)
  -present float
        Probability of a present mark (default 0.85)
  -workers int
        Concurrent backfill requests (default 4)
  -timeout duration
        HTTP request timeout (default 30s)
  -tz string
        Time zone used to compute today (default local)
  -output string
        Output file for the written plan (default: seed_plan_TIMESTAMP.json)
  -log string
        Log file (default: seed_log_TIMESTAMP.log)
  -verbose
        Log every written day
  -help
        Show this help message

Examples:
  # Seed a local service
  go run ./cmd/seed

  # A bigger class over two months
  go run ./cmd/seed -students 120 -days 60 -workers 8
`)
}
