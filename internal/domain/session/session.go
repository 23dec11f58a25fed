// Package session holds the in-progress attendance of one date, reconciled
// against what the store already has for that date.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/rollcall/internal/domain/lock"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/store"
	"github.com/okian/rollcall/pkg/logger"
)

// RecordSource fetches the persisted records of a date.
type RecordSource interface {
	RecordsByDate(ctx context.Context, date model.Date) ([]model.Record, error)
}

// Ticket tags a fetch with the date selection it was issued for. Results
// carrying an outdated ticket are discarded.
type Ticket struct {
	Date       model.Date
	generation uint64
}

// Rejection explains why a mark change was ignored.
type Rejection string

// Mark rejection reasons. RejectNone means the mark was applied.
const (
	RejectNone           Rejection = ""
	RejectLocked         Rejection = "locked"
	RejectUnknownStudent Rejection = "unknown_student"
	RejectInvalidStatus  Rejection = "invalid_status"
	RejectClosed         Rejection = "closed"
)

// Session is the working set of marks for exactly one date. It is safe for
// concurrent use, though a session normally has a single writer.
type Session struct {
	mu     sync.Mutex
	policy lock.Checker
	now    func() time.Time
	log    logger.Logger

	roster []model.Student
	known  map[string]struct{}
	marks  map[string]model.Status

	date           model.Date
	generation     uint64
	existsOnServer bool
	loaded         bool
	closed         bool
	cancel         context.CancelFunc
}

// New creates an empty session with no roster and no date.
func New(opts ...Option) *Session {
	s := &Session{
		policy: lock.New(),
		now:    time.Now,
		log:    logger.For("session"),
		known:  make(map[string]struct{}),
		marks:  make(map[string]model.Status),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadRoster replaces the roster and resets every mark to Unmarked.
func (s *Session) LoadRoster(students []model.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roster = append([]model.Student(nil), students...)
	s.known = make(map[string]struct{}, len(students))
	for _, st := range students {
		s.known[st.ID] = struct{}{}
	}
	s.resetMarksLocked()
	s.existsOnServer = false
	s.loaded = false
}

func (s *Session) resetMarksLocked() {
	s.marks = make(map[string]model.Status, len(s.roster))
	for _, st := range s.roster {
		s.marks[st.ID] = model.StatusUnmarked
	}
}

// SelectDate switches the session to d. Prior edits are dropped, any fetch
// in flight is cancelled and its result will be rejected by Reconcile.
func (s *Session) SelectDate(d model.Date) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectLocked(d, nil)
}

func (s *Session) selectLocked(d model.Date, cancel context.CancelFunc) Ticket {
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.generation++
	s.date = d
	s.existsOnServer = false
	s.loaded = false
	s.resetMarksLocked()
	return Ticket{Date: d, generation: s.generation}
}

// Reconcile merges records fetched for t into the marks. It returns false
// and changes nothing when t is no longer the current selection.
func (s *Session) Reconcile(t Ticket, records []model.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.currentLocked(t) {
		return false
	}

	exists := false
	for _, r := range records {
		if r.Date != t.Date {
			continue
		}
		exists = true
		if _, ok := s.known[r.StudentID]; !ok || !r.Status.Persistable() {
			continue
		}
		s.marks[r.StudentID] = r.Status
	}
	s.existsOnServer = exists
	s.loaded = true
	return true
}

func (s *Session) currentLocked(t Ticket) bool {
	return !s.closed && t.generation == s.generation && t.Date == s.date
}

// Load selects d and reconciles it with src. It returns ErrStale when
// another selection or Close superseded the fetch before it resolved.
func (s *Session) Load(ctx context.Context, src RecordSource, d model.Date) error {
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	t := s.selectLocked(d, cancel)
	s.mu.Unlock()

	records, err := src.RecordsByDate(fetchCtx, d)
	if !s.Current(t) {
		s.log.Debug(ctx, "discarding stale records", logger.Date("date", d))
		return ErrStale
	}
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			return ErrStale
		}
		return store.Unavailable("records_by_date", err)
	}
	if !s.Reconcile(t, records) {
		s.log.Debug(ctx, "discarding stale records", logger.Date("date", d))
		return ErrStale
	}
	return nil
}

// Current reports whether t is still the active selection.
func (s *Session) Current(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked(t)
}

// SetMark sets a student's status. It is a silent no-op, returning false,
// when the date is locked, the student is unknown or status is Unmarked.
func (s *Session) SetMark(studentID string, status model.Status) bool {
	return s.TrySetMark(studentID, status) == RejectNone
}

// TrySetMark is SetMark reporting why a change was ignored.
func (s *Session) TrySetMark(studentID string, status model.Status) Rejection {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return RejectClosed
	case s.policy.IsLocked(s.date, s.now()):
		return RejectLocked
	case !status.Persistable():
		return RejectInvalidStatus
	}
	if _, ok := s.known[studentID]; !ok {
		return RejectUnknownStudent
	}
	s.marks[studentID] = status
	return RejectNone
}

// IsComplete reports whether no student is Unmarked.
func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeLocked()
}

func (s *Session) completeLocked() bool {
	for _, st := range s.marks {
		if st == model.StatusUnmarked {
			return false
		}
	}
	return true
}

// Stats counts the current marks. Total is the roster size.
func (s *Session) Stats() model.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *Session) statsLocked() model.Stats {
	st := model.Stats{Total: len(s.roster)}
	for _, m := range s.marks {
		switch m {
		case model.StatusPresent:
			st.Present++
		case model.StatusAbsent:
			st.Absent++
		}
	}
	return st
}

// Locked evaluates the lock policy against the current time.
func (s *Session) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy.IsLocked(s.date, s.now())
}

// Date returns the selected date.
func (s *Session) Date() model.Date {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date
}

// ExistsOnServer reports whether the store already holds this date.
func (s *Session) ExistsOnServer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existsOnServer
}

// MarkPersisted records a successful commit for t. It returns false when
// the session moved to another date in the meantime.
func (s *Session) MarkPersisted(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(t) {
		return false
	}
	s.existsOnServer = true
	return true
}

// Close cancels any fetch in flight and rejects further use.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.closed = true
}

// Snapshot is a consistent point-in-time view of the session, with lock
// state and stats computed at the moment it was taken.
type Snapshot struct {
	Date           model.Date    `json:"date"`
	Entries        []model.Entry `json:"entries"`
	ExistsOnServer bool          `json:"existsOnServer"`
	Loaded         bool          `json:"loaded"`
	Locked         bool          `json:"locked"`
	Complete       bool          `json:"complete"`
	Stats          model.Stats   `json:"stats"`

	ticket Ticket
}

// Ticket identifies the selection the snapshot was taken from.
func (v Snapshot) Ticket() Ticket { return v.ticket }

// Records converts the marked entries into records for the snapshot date.
func (v Snapshot) Records() []model.Record {
	out := make([]model.Record, 0, len(v.Entries))
	for _, e := range v.Entries {
		if !e.Status.Persistable() {
			continue
		}
		out = append(out, model.Record{StudentID: e.ID, Date: v.Date, Status: e.Status})
	}
	return out
}

// Snapshot captures the session in roster order.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]model.Entry, len(s.roster))
	for i, st := range s.roster {
		entries[i] = model.Entry{Student: st, Status: s.marks[st.ID]}
	}
	return Snapshot{
		Date:           s.date,
		Entries:        entries,
		ExistsOnServer: s.existsOnServer,
		Loaded:         s.loaded,
		Locked:         s.policy.IsLocked(s.date, s.now()),
		Complete:       s.completeLocked(),
		Stats:          s.statsLocked(),
		ticket:         Ticket{Date: s.date, generation: s.generation},
	}
}
