package valuation

import "github.com/okian/pinrank/internal/domain/model"

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithBaseValue sets the per rated player base value and its cap.
func WithBaseValue(perPlayer, limit float64) Option {
	return func(c *Calculator) {
		c.basePerPlayer = perPlayer
		c.baseCap = limit
	}
}

// WithRatingCurve sets the linear rating contribution and the rating TVA cap.
func WithRatingCurve(slope, intercept, limit float64) Option {
	return func(c *Calculator) {
		c.ratingSlope = slope
		c.ratingIntercept = intercept
		c.ratingCap = limit
	}
}

// WithRankingCurve sets the logarithmic ranking contribution, the deepest
// counted rank and the ranking TVA cap.
func WithRankingCurve(coefficient, intercept float64, maxRank int, limit float64) Option {
	return func(c *Calculator) {
		c.rankingCoefficient = coefficient
		c.rankingIntercept = intercept
		c.rankingMaxRank = maxRank
		c.rankingCap = limit
	}
}

// WithTVACaps overrides the three TVA caps. Non-positive values keep the
// current cap.
func WithTVACaps(rating, ranking, total float64) Option {
	return func(c *Calculator) {
		if rating > 0 {
			c.ratingCap = rating
		}
		if ranking > 0 {
			c.rankingCap = ranking
		}
		if total > 0 {
			c.totalCap = total
		}
	}
}

// WithBoosterMultipliers replaces the booster policy table. The map is
// copied so later changes by the caller have no effect.
func WithBoosterMultipliers(table map[model.Booster]float64) Option {
	return func(c *Calculator) {
		if len(table) == 0 {
			return
		}
		c.boosters = make(map[model.Booster]float64, len(table))
		for b, m := range table {
			c.boosters[b] = m
		}
	}
}
