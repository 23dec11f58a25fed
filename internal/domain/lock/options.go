package lock

import "time"

// Option applies a configuration option to the Policy.
type Option func(*Policy)

// WithWindow sets the edit window. Non-positive values are ignored.
func WithWindow(window time.Duration) Option {
	return func(p *Policy) {
		if window > 0 {
			p.window = window
		}
	}
}

// WithLocation sets the zone in which a date's midnight is computed.
func WithLocation(loc *time.Location) Option {
	return func(p *Policy) {
		if loc != nil {
			p.loc = loc
		}
	}
}
