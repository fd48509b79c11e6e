package auth

import "time"

// Clock returns the current time.
type Clock func() time.Time

type settings struct {
	now Clock
}

// Option configures the token provider and the refresh-token store.
type Option func(*settings)

// WithClock overrides the time source.
func WithClock(now Clock) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

func applyOptions(opts []Option) settings {
	s := settings{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
