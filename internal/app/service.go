// Package service composes the attendance store, sessions, submissions and
// reports into the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/rollcall/internal/domain/lock"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/report"
	"github.com/okian/rollcall/internal/domain/session"
	"github.com/okian/rollcall/internal/domain/store"
	"github.com/okian/rollcall/internal/domain/submission"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
	"github.com/robfig/cron/v3"
)

var (
	_ store.Store        = (*Service)(nil)
	_ store.RosterWriter = (*Service)(nil)
)

// View is a session snapshot addressed by its ID.
type View struct {
	ID string `json:"id"`
	session.Snapshot
}

type entry struct {
	sess     *session.Session
	lastUsed time.Time
}

// Service owns the open sessions and the scheduled jobs.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       store.Store
	policy      lock.Policy
	coordinator *submission.Coordinator
	reports     *report.Engine

	// Configuration
	backend         string
	sessionTTL      time.Duration
	janitorSchedule string
	digestSchedule  string
	now             func() time.Time

	// State
	sessions map[string]*entry
	cron     *cron.Cron
	started  bool

	logger logger.Logger
}

// New constructs a Service. Without WithStore it has no backend and
// every store call fails with store.ErrUnavailable.
func New(opts ...Option) *Service {
	s := &Service{
		store:           unavailableStore{},
		policy:          lock.New(),
		backend:         "none",
		sessionTTL:      30 * time.Minute,
		janitorSchedule: "@every 1m",
		digestSchedule:  "5 0 * * *",
		now:             time.Now,
		sessions:        make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.For("service")
	}

	s.coordinator = submission.New(s.store, s.policy,
		submission.WithClock(s.now),
		submission.WithLogger(s.logger.Named("submission")),
	)
	s.reports = report.New(s.store, report.WithLogger(s.logger.Named("report")))
	return s
}

// Start schedules the session janitor and the daily digest.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	cl := cronLogger{ctx: ctx, log: s.logger.Named("cron")}
	c := cron.New(
		cron.WithLocation(s.policy.Location()),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(s.janitorSchedule, func() { s.runJanitor(ctx) }); err != nil {
		return fmt.Errorf("schedule janitor %q: %w", s.janitorSchedule, err)
	}
	if _, err := c.AddFunc(s.digestSchedule, func() { s.runDigest(ctx) }); err != nil {
		return fmt.Errorf("schedule digest %q: %w", s.digestSchedule, err)
	}
	c.Start()

	s.cron = c
	s.started = true
	s.logger.Info(ctx, "attendance service started",
		logger.String("backend", s.backend),
		logger.Duration("lockWindow", s.policy.Window()),
		logger.Duration("sessionTTL", s.sessionTTL),
		logger.String("digestSchedule", s.digestSchedule),
	)
	return nil
}

// Stop waits for running jobs and closes every open session.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	c := s.cron
	s.started = false
	s.mu.Unlock()

	// Jobs take s.mu, so wait for them unlocked.
	<-c.Stop().Done()

	s.mu.Lock()
	for id, e := range s.sessions {
		e.sess.Close()
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	metrics.UpdateActiveSessions(0)

	s.logger.Info(context.Background(), "attendance service stopped")
}

// OpenSession seeds a new session with the roster and reconciles it with
// what the store holds for date.
func (s *Service) OpenSession(ctx context.Context, date model.Date) (View, error) {
	roster, err := s.store.Roster(ctx)
	if err != nil {
		return View{}, store.Unavailable("roster", err)
	}

	sess := session.New(
		session.WithPolicy(s.policy),
		session.WithClock(s.now),
		session.WithLogger(s.logger.Named("session")),
	)
	sess.LoadRoster(roster)
	if err := sess.Load(ctx, s.store, date); err != nil {
		sess.Close()
		return View{}, err
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &entry{sess: sess, lastUsed: s.now()}
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.UpdateActiveSessions(n)
	s.logger.Info(ctx, "session opened",
		logger.String("session", id),
		logger.Date("date", date),
		logger.Int("roster", len(roster)),
	)
	return View{ID: id, Snapshot: sess.Snapshot()}, nil
}

// Session returns the current view of an open session.
func (s *Service) Session(_ context.Context, id string) (View, error) {
	sess, err := s.touch(id)
	if err != nil {
		return View{}, err
	}
	return View{ID: id, Snapshot: sess.Snapshot()}, nil
}

// ChangeDate reselects the session's date, dropping unsaved marks. A call
// overtaken by a later one returns session.ErrStale.
func (s *Service) ChangeDate(ctx context.Context, id string, date model.Date) (View, error) {
	sess, err := s.touch(id)
	if err != nil {
		return View{}, err
	}
	if err := sess.Load(ctx, s.store, date); err != nil {
		if errors.Is(err, session.ErrStale) {
			metrics.RecordStaleResult()
		}
		return View{}, err
	}
	return View{ID: id, Snapshot: sess.Snapshot()}, nil
}

// Mark sets one student's status. A rejected change is not an error: it
// comes back with applied false.
func (s *Service) Mark(ctx context.Context, id, studentID string, status model.Status) (bool, View, error) {
	sess, err := s.touch(id)
	if err != nil {
		return false, View{}, err
	}
	if rej := sess.TrySetMark(studentID, status); rej != session.RejectNone {
		metrics.RecordMarkRejected(string(rej))
		s.logger.Debug(ctx, "mark ignored",
			logger.String("session", id),
			logger.String("student", studentID),
			logger.String("reason", string(rej)),
		)
		return false, View{ID: id, Snapshot: sess.Snapshot()}, nil
	}
	return true, View{ID: id, Snapshot: sess.Snapshot()}, nil
}

// Submit commits the session through the submission coordinator.
func (s *Service) Submit(ctx context.Context, id string) (submission.Result, error) {
	sess, err := s.touch(id)
	if err != nil {
		return submission.Result{}, err
	}
	return s.coordinator.Submit(ctx, sess)
}

// CloseSession discards a session and cancels its pending fetch.
func (s *Service) CloseSession(ctx context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	n := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.sess.Close()
	metrics.UpdateActiveSessions(n)
	s.logger.Info(ctx, "session closed", logger.String("session", id))
	return nil
}

func (s *Service) touch(id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.lastUsed = s.now()
	return e.sess, nil
}

// ExpireIdle closes sessions untouched for longer than the session TTL
// and returns how many it closed.
func (s *Service) ExpireIdle(ctx context.Context) int {
	cutoff := s.now().Add(-s.sessionTTL)

	s.mu.Lock()
	var expired []*session.Session
	for id, e := range s.sessions {
		if e.lastUsed.Before(cutoff) {
			expired = append(expired, e.sess)
			delete(s.sessions, id)
			s.logger.Info(ctx, "session expired", logger.String("session", id))
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range expired {
		sess.Close()
		metrics.RecordSessionExpired()
	}
	metrics.UpdateActiveSessions(n)
	return len(expired)
}

// Digest summarises the previous calendar day, the one whose edit window
// most recently closed, and publishes its attendance rate.
func (s *Service) Digest(ctx context.Context) (report.Daily, error) {
	yesterday := model.DateOf(s.now().In(s.policy.Location())).AddDays(-1)
	daily, err := s.reports.DailySummary(ctx, yesterday)
	if err != nil {
		return report.Daily{}, err
	}

	rate := model.Percentage(daily.Stats.Present, daily.Stats.Total)
	metrics.UpdateDailyAttendance(rate)
	s.logger.Info(ctx, "daily attendance digest",
		logger.Date("date", daily.Date),
		logger.Int("present", daily.Stats.Present),
		logger.Int("absent", daily.Stats.Absent),
		logger.Int("unrecorded", daily.Unrecorded),
		logger.Int("percentage", rate),
	)
	return daily, nil
}

// DailySummary reports what was recorded for date.
func (s *Service) DailySummary(ctx context.Context, date model.Date) (report.Daily, error) {
	return s.reports.DailySummary(ctx, date)
}

// MonthlyAggregate reports per-student totals for period.
func (s *Service) MonthlyAggregate(ctx context.Context, period model.Period) ([]model.MonthlyAggregate, error) {
	return s.reports.MonthlyAggregate(ctx, period)
}

// MonthlyWorkbook writes the monthly aggregate of period as XLSX to w.
func (s *Service) MonthlyWorkbook(ctx context.Context, period model.Period, w io.Writer) error {
	rows, err := s.reports.MonthlyAggregate(ctx, period)
	if err != nil {
		return err
	}
	return report.WriteMonthlyWorkbook(w, period, rows)
}

// Roster lists the students of the backing store.
func (s *Service) Roster(ctx context.Context) ([]model.Student, error) {
	return s.store.Roster(ctx)
}

// RecordsByDate returns the stored records of date.
func (s *Service) RecordsByDate(ctx context.Context, date model.Date) ([]model.Record, error) {
	return s.store.RecordsByDate(ctx, date)
}

// RecordsByMonth returns the stored records of period.
func (s *Service) RecordsByMonth(ctx context.Context, period model.Period) ([]model.Record, error) {
	return s.store.RecordsByMonth(ctx, period)
}

// Create stores a record set for a date that has none.
func (s *Service) Create(ctx context.Context, date model.Date, records []model.Record) error {
	return s.store.Create(ctx, date, records)
}

// Update replaces the record set of a date.
func (s *Service) Update(ctx context.Context, date model.Date, records []model.Record) error {
	return s.store.Update(ctx, date, records)
}

// AddStudent adds a student when the backend allows roster writes.
func (s *Service) AddStudent(ctx context.Context, name string, rollNumber int) (model.Student, error) {
	w, err := s.rosterWriter()
	if err != nil {
		return model.Student{}, err
	}
	return w.AddStudent(ctx, name, rollNumber)
}

// UpdateStudent renames or renumbers a student.
func (s *Service) UpdateStudent(ctx context.Context, student model.Student) (model.Student, error) {
	w, err := s.rosterWriter()
	if err != nil {
		return model.Student{}, err
	}
	return w.UpdateStudent(ctx, student)
}

// DeleteStudent removes a student from the roster.
func (s *Service) DeleteStudent(ctx context.Context, id string) error {
	w, err := s.rosterWriter()
	if err != nil {
		return err
	}
	return w.DeleteStudent(ctx, id)
}

func (s *Service) rosterWriter() (store.RosterWriter, error) {
	w, ok := s.store.(store.RosterWriter)
	if !ok {
		return nil, ErrRosterReadOnly
	}
	return w, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"started":        s.started,
		"backend":        s.backend,
		"activeSessions": len(s.sessions),
		"lockWindow":     s.policy.Window().String(),
		"sessionTTL":     s.sessionTTL.String(),
		"timezone":       s.policy.Location().String(),
		"rosterWritable": s.rosterWritable(),
	}
}

func (s *Service) rosterWritable() bool {
	_, ok := s.store.(store.RosterWriter)
	return ok
}
