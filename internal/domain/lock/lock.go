// Package lock decides whether an attendance date is still editable.
package lock

import (
	"time"

	"github.com/okian/rollcall/internal/domain/model"
)

// DefaultWindow is how long after its midnight a date stays editable.
const DefaultWindow = 24 * time.Hour

// Checker is the predicate consumers need; Policy implements it.
type Checker interface {
	IsLocked(d model.Date, now time.Time) bool
}

// Policy is a stateless lock predicate. The zero value is not usable; build
// one with New.
type Policy struct {
	window time.Duration
	loc    *time.Location
}

// New returns a Policy with the default 24h window in the local zone.
func New(opts ...Option) Policy {
	p := Policy{window: DefaultWindow, loc: time.Local}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// IsLocked reports whether more than the window has elapsed since the
// date's midnight. Dates at or after now are never locked. The result must
// be recomputed on every use since it changes as now advances.
func (p Policy) IsLocked(d model.Date, now time.Time) bool {
	return now.Sub(d.Midnight(p.loc)) > p.window
}

// Deadline is the last instant at which d is still editable.
func (p Policy) Deadline(d model.Date) time.Time {
	return d.Midnight(p.loc).Add(p.window)
}

// Window returns the configured edit window.
func (p Policy) Window() time.Duration { return p.window }

// Location returns the zone used to place dates on the timeline.
func (p Policy) Location() *time.Location { return p.loc }
