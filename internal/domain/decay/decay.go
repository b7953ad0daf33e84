// Package decay ages tournament results. A result keeps its full value for a
// year and then loses weight in steps until it stops counting.
package decay

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/pinrank/internal/domain/model"
	"github.com/okian/pinrank/pkg/logger"
	"github.com/okian/pinrank/pkg/metrics"
)

const day = 24 * time.Hour

// WarningFutureDated is the warning kind emitted when a tournament date lies
// after the as-of instant.
const WarningFutureDated = "future_dated_result"

// Step is one row of the decay table: results at most MaxAgeDays old keep
// Multiplier of their points.
type Step struct {
	MaxAgeDays int     `koanf:"max_age_days" yaml:"max_age_days"`
	Multiplier float64 `koanf:"multiplier" yaml:"multiplier"`
}

// DefaultSteps is the standard three year schedule.
func DefaultSteps() []Step {
	return []Step{
		{MaxAgeDays: 365, Multiplier: 1.00},
		{MaxAgeDays: 730, Multiplier: 0.75},
		{MaxAgeDays: 1095, Multiplier: 0.50},
	}
}

// Input is the part of a result decay depends on.
type Input struct {
	TotalPoints    float64
	TournamentDate time.Time
}

// Output holds the three decay fields of a result. They are always written
// together.
type Output struct {
	AgeInDays       int
	DecayMultiplier float64
	DecayedPoints   float64
}

// Engine applies a decay table. It is safe for concurrent use.
type Engine struct {
	steps []Step
	log   logger.Logger
}

// New builds an Engine and validates its table.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		steps: DefaultSteps(),
		log:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := validateSteps(e.steps); err != nil {
		return nil, err
	}
	return e, nil
}

// Steps returns a copy of the table in use.
func (e *Engine) Steps() []Step {
	return append([]Step(nil), e.steps...)
}

// Multiplier returns the weight of a result ageDays old.
func (e *Engine) Multiplier(ageDays int) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	for _, s := range e.steps {
		if ageDays <= s.MaxAgeDays {
			return s.Multiplier
		}
	}
	return 0
}

// Apply computes the decay fields of one result as of asOf. Applying twice
// with the same asOf gives the same output.
func (e *Engine) Apply(in Input, asOf time.Time) Output {
	return e.apply(context.Background(), in, asOf)
}

func (e *Engine) apply(ctx context.Context, in Input, asOf time.Time) Output {
	age := int(math.Floor(asOf.Sub(in.TournamentDate).Hours() / day.Hours()))
	if age < 0 {
		e.log.Warn(ctx, "tournament date is after the sweep instant, treating as age 0",
			logger.Time("tournament_date", in.TournamentDate),
			logger.Time("as_of", asOf),
		)
		metrics.RecordWarning(WarningFutureDated)
		age = 0
	}

	m := e.Multiplier(age)
	decayed := decimal.NewFromFloat(in.TotalPoints).Mul(decimal.NewFromFloat(m)).Round(model.PointsPlaces).InexactFloat64()
	if decayed > in.TotalPoints {
		decayed = in.TotalPoints
	}
	return Output{AgeInDays: age, DecayMultiplier: m, DecayedPoints: decayed}
}

// ApplyAll returns copies of results with their decay fields refreshed as of
// asOf. The input slice is not modified.
func (e *Engine) ApplyAll(ctx context.Context, results []model.Result, asOf time.Time) []model.Result {
	out := make([]model.Result, len(results))
	for i, r := range results {
		o := e.apply(ctx, Input{TotalPoints: r.TotalPoints, TournamentDate: r.TournamentDate}, asOf)
		r.AgeInDays = o.AgeInDays
		r.DecayMultiplier = o.DecayMultiplier
		r.DecayedPoints = o.DecayedPoints
		out[i] = r
	}
	return out
}

func validateSteps(steps []Step) error {
	const component = "decay"
	if len(steps) == 0 {
		return model.NewConfigurationError(component, "decay_steps", "at least one step is required")
	}
	if steps[0].Multiplier != 1 {
		return model.NewConfigurationError(component, "decay_steps", "the first step must keep full value")
	}
	prevAge, prevMult := -1, 1.0
	for i, s := range steps {
		if s.MaxAgeDays <= prevAge {
			return model.NewConfigurationError(component, "decay_steps",
				fmt.Sprintf("step %d: age %d is not after %d", i, s.MaxAgeDays, prevAge))
		}
		if s.Multiplier < 0 || s.Multiplier > prevMult || math.IsNaN(s.Multiplier) {
			return model.NewConfigurationError(component, "decay_steps",
				fmt.Sprintf("step %d: multiplier %.2f must be in [0, %.2f]", i, s.Multiplier, prevMult))
		}
		prevAge, prevMult = s.MaxAgeDays, s.Multiplier
	}
	return nil
}
