// Package submission commits a complete session to the attendance store,
// choosing between a first write and a correction.
package submission

import (
	"context"
	"errors"
	"time"

	"github.com/okian/rollcall/internal/domain/lock"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/session"
	"github.com/okian/rollcall/internal/domain/store"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

// Mode says how a submission reached the store.
type Mode string

// Submission modes.
const (
	ModeCreated   Mode = "created"
	ModeUpdated   Mode = "updated"
	ModeRecovered Mode = "recovered" // create raced another writer and was retried as an update
)

// Result is a committed submission. Records are exactly what was sent.
type Result struct {
	Mode    Mode           `json:"mode"`
	Date    model.Date     `json:"date"`
	Records []model.Record `json:"records"`
}

// Coordinator commits sessions. It holds no per-session state.
type Coordinator struct {
	writer store.RecordWriter
	policy lock.Checker
	now    func() time.Time
	log    logger.Logger
}

// New creates a Coordinator writing through w and gating on policy.
func New(w store.RecordWriter, policy lock.Checker, opts ...Option) *Coordinator {
	c := &Coordinator{
		writer: w,
		policy: policy,
		now:    time.Now,
		log:    logger.For("submission"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit validates s and writes its whole record set for its date. A
// failed submission leaves the store as it was.
func (c *Coordinator) Submit(ctx context.Context, s *session.Session) (Result, error) {
	snap := s.Snapshot()
	res, err := c.commit(ctx, snap)
	if err != nil {
		metrics.RecordSubmissionError(reason(err))
		c.log.Warn(ctx, "submission rejected",
			logger.Date("date", snap.Date),
			logger.Error(err),
		)
		return Result{}, err
	}

	s.MarkPersisted(snap.Ticket())
	metrics.RecordSubmission(string(res.Mode))
	c.log.Info(ctx, "attendance submitted",
		logger.Date("date", res.Date),
		logger.String("mode", string(res.Mode)),
		logger.Int("records", len(res.Records)),
	)
	return res, nil
}

func (c *Coordinator) commit(ctx context.Context, snap session.Snapshot) (Result, error) {
	if len(snap.Entries) == 0 {
		return Result{}, ErrEmptyRoster
	}
	if !snap.Complete {
		return Result{}, ErrIncompleteMarks
	}
	// Re-checked here, the snapshot's Locked may predate the boundary.
	if c.policy.IsLocked(snap.Date, c.now()) {
		return Result{}, ErrLockedDate
	}

	records := snap.Records()
	res := Result{Date: snap.Date, Records: records}

	if snap.ExistsOnServer {
		if err := c.writer.Update(ctx, snap.Date, records); err != nil {
			return Result{}, store.Unavailable("update", err)
		}
		res.Mode = ModeUpdated
		return res, nil
	}

	err := c.writer.Create(ctx, snap.Date, records)
	switch {
	case err == nil:
		res.Mode = ModeCreated
		return res, nil
	case !errors.Is(err, store.ErrAlreadyExists):
		return Result{}, store.Unavailable("create", err)
	}

	// Another writer created the date first. One update, no loop.
	metrics.RecordCreateConflict()
	c.log.Info(ctx, "create raced an existing record set, retrying as update", logger.Date("date", snap.Date))
	if err := c.writer.Update(ctx, snap.Date, records); err != nil {
		return Result{}, store.Unavailable("update", err)
	}
	res.Mode = ModeRecovered
	return res, nil
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyRoster):
		return "empty_roster"
	case errors.Is(err, ErrIncompleteMarks):
		return "incomplete"
	case errors.Is(err, ErrLockedDate):
		return "locked"
	default:
		return "store_unavailable"
	}
}
