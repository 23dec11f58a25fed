package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/store"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

const jobTimeout = 2 * time.Minute

func (s *Service) runJanitor(ctx context.Context) {
	n := s.ExpireIdle(ctx)
	metrics.RecordScheduledJob("janitor", nil)
	if n > 0 {
		s.logger.Debug(ctx, "janitor sweep", logger.Int("expired", n))
	}
}

func (s *Service) runDigest(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	_, err := s.Digest(ctx)
	metrics.RecordScheduledJob("digest", err)
	if err != nil {
		s.logger.Error(ctx, "daily digest failed", logger.Error(err))
	}
}

// cronLogger routes robfig/cron's key/value logging into our logger.
type cronLogger struct {
	ctx context.Context
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(l.ctx, msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(l.ctx, msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}

// unavailableStore stands in until a backend is configured.
type unavailableStore struct{}

var errNoBackend = errors.New("no attendance store configured")

func (unavailableStore) Roster(context.Context) ([]model.Student, error) {
	return nil, store.Unavailable("roster", errNoBackend)
}

func (unavailableStore) RecordsByDate(context.Context, model.Date) ([]model.Record, error) {
	return nil, store.Unavailable("records_by_date", errNoBackend)
}

func (unavailableStore) RecordsByMonth(context.Context, model.Period) ([]model.Record, error) {
	return nil, store.Unavailable("records_by_month", errNoBackend)
}

func (unavailableStore) Create(context.Context, model.Date, []model.Record) error {
	return store.Unavailable("create", errNoBackend)
}

func (unavailableStore) Update(context.Context, model.Date, []model.Record) error {
	return store.Unavailable("update", errNoBackend)
}
