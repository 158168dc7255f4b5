package domain

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Option customises a service.
type Option func(*options)

type options struct {
	log logrus.FieldLogger
	now Clock
}

// WithLogger sets the logger used for swallowed collaborator failures.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithClock overrides the time source.
func WithClock(now Clock) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	o := options{log: discard, now: SystemClock}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
