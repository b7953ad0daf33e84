package decay

import "github.com/okian/pinrank/pkg/logger"

// Option configures an Engine.
type Option func(*Engine)

// WithSteps replaces the decay table.
func WithSteps(steps []Step) Option {
	return func(e *Engine) {
		e.steps = append([]Step(nil), steps...)
	}
}

// WithLogger sets the logger used for soft warnings.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}
