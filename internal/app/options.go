package service

import (
	"time"

	"github.com/okian/rollcall/internal/domain/lock"
	"github.com/okian/rollcall/internal/domain/store"
	"github.com/okian/rollcall/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the attendance store. Backends that also implement
// store.RosterWriter get roster management.
func WithStore(st store.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithBackendName labels the store in stats.
func WithBackendName(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.backend = name
		}
	}
}

// WithLockPolicy sets the edit lock applied to sessions and submissions.
func WithLockPolicy(p lock.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithClock overrides the source of "now".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSessionTTL sets how long an untouched session lives.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithJanitorSchedule sets the cron spec of the idle-session sweep.
func WithJanitorSchedule(spec string) Option {
	return func(s *Service) {
		if spec != "" {
			s.janitorSchedule = spec
		}
	}
}

// WithDigestSchedule sets the cron spec of the daily digest.
func WithDigestSchedule(spec string) Option {
	return func(s *Service) {
		if spec != "" {
			s.digestSchedule = spec
		}
	}
}
