package session

import (
	"time"

	"github.com/okian/rollcall/internal/domain/lock"
	"github.com/okian/rollcall/pkg/logger"
)

// Option applies a configuration option to the Session.
type Option func(*Session)

// WithPolicy sets the lock predicate consulted on every mutation.
func WithPolicy(p lock.Checker) Option {
	return func(s *Session) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithClock overrides the source of "now".
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}
