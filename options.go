package apicheck

import (
	"github.com/sirupsen/logrus"
)

// WithLogger sets the logger used by the runner and its hooks.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithHook registers a hook. It must implement at least one listener.
func WithHook(h Hook) Option {
	return func(r *Runner) {
		r.hooks.all = append(r.hooks.all, h)
	}
}
