package repository

import (
	"time"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithStudents seeds the roster.
func WithStudents(students ...model.Student) Option {
	return func(s *MemoryStore) {
		for _, st := range students {
			s.students[st.ID] = st
		}
	}
}

// PostgresOption applies a configuration option to the PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresLogger sets the logger used for SQL tracing.
func WithPostgresLogger(l logger.Logger) PostgresOption {
	return func(s *PostgresStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSlowThreshold sets the duration above which queries are logged as slow.
func WithSlowThreshold(d time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		if d > 0 {
			s.slowThreshold = d
		}
	}
}

// WithAutoMigrate controls whether OpenPostgres creates the schema.
func WithAutoMigrate(enabled bool) PostgresOption {
	return func(s *PostgresStore) {
		s.autoMigrate = enabled
	}
}
