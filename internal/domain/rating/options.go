package rating

import "github.com/okian/pinrank/pkg/logger"

// Option configures an Engine.
type Option func(*Engine)

// WithInitialRating sets the rating and deviation of new players. The
// deviation doubles as the ceiling every deviation is clamped to.
func WithInitialRating(rating, deviation float64) Option {
	return func(e *Engine) {
		e.initialRating = rating
		e.initialDeviation = deviation
	}
}

// WithDeviationFloor sets the lowest deviation a player can reach.
func WithDeviationFloor(floor float64) Option {
	return func(e *Engine) {
		e.deviationFloor = floor
	}
}

// WithInactivityGrowth sets c, the per-day deviation growth while idle.
func WithInactivityGrowth(c float64) Option {
	return func(e *Engine) {
		e.inactivityGrowth = c
	}
}

// WithLearningRate scales every rating change.
func WithLearningRate(rate float64) Option {
	return func(e *Engine) {
		e.learningRate = rate
	}
}

// WithRatedThreshold sets the event count at which a player becomes rated.
func WithRatedThreshold(events int) Option {
	return func(e *Engine) {
		e.ratedThreshold = events
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
