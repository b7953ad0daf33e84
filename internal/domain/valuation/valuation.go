// Package valuation computes a tournament's first place value from its field
// composition, format grading and event booster.
package valuation

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/okian/pinrank/internal/domain/model"
)

const opCompute = "compute_tournament_value"

// Default policy constants.
const (
	defaultBasePerPlayer = 0.5
	defaultBaseCap       = 32.0

	defaultRatingSlope     = 0.000546875
	defaultRatingIntercept = -0.703125
	defaultRatingTVACap    = 25.0

	defaultRankingCoefficient = -0.211675054
	defaultRankingIntercept   = 1.459827968
	defaultRankingMaxRank     = 250
	defaultRankingTVACap      = 50.0

	defaultTotalTVACap = 75.0
)

// DefaultBoosterMultipliers is the booster policy table.
func DefaultBoosterMultipliers() map[model.Booster]float64 {
	return map[model.Booster]float64{
		model.BoosterNone:               1.00,
		model.BoosterCertified:          1.25,
		model.BoosterCertifiedPlus:      1.50,
		model.BoosterChampionshipSeries: 1.75,
		model.BoosterMajor:              2.00,
	}
}

// RatingSummary carries the ratings of the rated entrants.
type RatingSummary struct {
	Ratings []float64
}

// RankingSummary carries the current rank-list positions of ranked entrants.
// Unranked entrants are simply absent.
type RankingSummary struct {
	Rankings []int
}

// Input is everything the calculator needs about one tournament.
type Input struct {
	RatedPlayerCount int
	TotalPlayerCount int
	Ratings          RatingSummary
	Rankings         RankingSummary
	TGP              float64
	Booster          model.Booster
}

// Value is the derived value of a tournament. Intermediate steps are kept
// so callers can audit how the first place value came about.
type Value struct {
	BaseValue         float64
	RatingTVA         float64
	RankingTVA        float64
	TotalTVA          float64
	RawValue          float64
	AfterTGP          float64
	BoosterMultiplier float64
	FirstPlaceValue   float64
}

// Calculator is a pure tournament value function over a policy table. It is
// safe for concurrent use.
type Calculator struct {
	basePerPlayer float64
	baseCap       float64

	ratingSlope     float64
	ratingIntercept float64
	ratingCap       float64

	rankingCoefficient float64
	rankingIntercept   float64
	rankingMaxRank     int
	rankingCap         float64

	totalCap float64

	boosters map[model.Booster]float64
}

// New builds a Calculator. Policy tables are validated here and rejected
// with a ConfigurationError.
func New(opts ...Option) (*Calculator, error) {
	c := &Calculator{
		basePerPlayer:      defaultBasePerPlayer,
		baseCap:            defaultBaseCap,
		ratingSlope:        defaultRatingSlope,
		ratingIntercept:    defaultRatingIntercept,
		ratingCap:          defaultRatingTVACap,
		rankingCoefficient: defaultRankingCoefficient,
		rankingIntercept:   defaultRankingIntercept,
		rankingMaxRank:     defaultRankingMaxRank,
		rankingCap:         defaultRankingTVACap,
		totalCap:           defaultTotalTVACap,
		boosters:           DefaultBoosterMultipliers(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Calculator) validate() error {
	const component = "valuation"
	if c.basePerPlayer <= 0 || c.baseCap <= 0 {
		return model.NewConfigurationError(component, "base_value", "per-player value and cap must be positive")
	}
	if c.ratingCap <= 0 || c.rankingCap <= 0 || c.totalCap <= 0 {
		return model.NewConfigurationError(component, "tva_caps", "caps must be positive")
	}
	if c.ratingSlope <= 0 {
		return model.NewConfigurationError(component, "rating_slope", "a stronger field must not lower the value")
	}
	if c.rankingCoefficient >= 0 {
		return model.NewConfigurationError(component, "ranking_coefficient", "a better rank must not lower the value")
	}
	if c.rankingMaxRank < 1 {
		return model.NewConfigurationError(component, "ranking_max_rank", "must be at least 1")
	}

	prev := 0.0
	for i, b := range model.Boosters() {
		m, ok := c.boosters[b]
		if !ok {
			return model.NewConfigurationError(component, "booster_multipliers", fmt.Sprintf("missing tier %s", b))
		}
		if i == 0 && m != 1 {
			return model.NewConfigurationError(component, "booster_multipliers", "NONE must be 1.00")
		}
		if m <= prev {
			return model.NewConfigurationError(component, "booster_multipliers",
				fmt.Sprintf("tier %s (%.2f) must exceed the tier below (%.2f)", b, m, prev))
		}
		prev = m
	}
	for b := range c.boosters {
		if !b.Valid() {
			return model.NewConfigurationError(component, "booster_multipliers", fmt.Sprintf("unknown tier %q", b))
		}
	}
	return nil
}

// BoosterMultiplier returns the multiplier of a booster tier.
func (c *Calculator) BoosterMultiplier(b model.Booster) (float64, error) {
	m, ok := c.boosters[b]
	if !ok {
		return 0, model.NewValidationError(opCompute, "event_booster", fmt.Sprintf("unknown booster code %q", b))
	}
	return m, nil
}

// Compute derives the tournament value. Identical inputs always yield
// identical outputs.
func (c *Calculator) Compute(in Input) (Value, error) {
	if err := validateInput(in); err != nil {
		return Value{}, err
	}
	multiplier, err := c.BoosterMultiplier(in.Booster)
	if err != nil {
		return Value{}, err
	}

	base := model.RoundPoints(math.Min(c.basePerPlayer*float64(in.RatedPlayerCount), c.baseCap))
	ratingTVA := model.RoundPoints(c.RatingTVA(in.Ratings))
	rankingTVA := model.RoundPoints(c.RankingTVA(in.Rankings))
	totalTVA := math.Min(decimal.NewFromFloat(ratingTVA).Add(decimal.NewFromFloat(rankingTVA)).InexactFloat64(), c.totalCap)

	raw := decimal.NewFromFloat(base).Add(decimal.NewFromFloat(totalTVA))
	afterTGP := raw.Mul(decimal.NewFromFloat(in.TGP)).Round(model.PointsPlaces)
	fpv := afterTGP.Mul(decimal.NewFromFloat(multiplier)).Round(model.PointsPlaces)

	return Value{
		BaseValue:         base,
		RatingTVA:         ratingTVA,
		RankingTVA:        rankingTVA,
		TotalTVA:          totalTVA,
		RawValue:          raw.InexactFloat64(),
		AfterTGP:          afterTGP.InexactFloat64(),
		BoosterMultiplier: multiplier,
		FirstPlaceValue:   fpv.InexactFloat64(),
	}, nil
}

// RatingTVA sums the per-entrant field strength contributions, saturating
// at the rating TVA cap.
func (c *Calculator) RatingTVA(s RatingSummary) float64 {
	sum := 0.0
	for _, r := range s.Ratings {
		sum += math.Max(0, r*c.ratingSlope+c.ratingIntercept)
	}
	return math.Min(sum, c.ratingCap)
}

// RankingTVA sums the per-entrant prestige contributions of ranked players
// within the counted range, saturating at the ranking TVA cap.
func (c *Calculator) RankingTVA(s RankingSummary) float64 {
	sum := 0.0
	for _, rank := range s.Rankings {
		if rank < 1 || rank > c.rankingMaxRank {
			continue
		}
		sum += math.Max(0, math.Log(float64(rank))*c.rankingCoefficient+c.rankingIntercept)
	}
	return math.Min(sum, c.rankingCap)
}

func validateInput(in Input) error {
	if in.TGP <= 0 || in.TGP > 1 || math.IsNaN(in.TGP) {
		return model.NewValidationError(opCompute, "tgp", fmt.Sprintf("%v is outside (0,1]", in.TGP))
	}
	if in.RatedPlayerCount < 0 {
		return model.NewValidationError(opCompute, "rated_player_count", "must not be negative")
	}
	if in.TotalPlayerCount < 1 {
		return model.NewValidationError(opCompute, "total_player_count", "must be at least 1")
	}
	if in.RatedPlayerCount > in.TotalPlayerCount {
		return model.NewValidationError(opCompute, "rated_player_count",
			fmt.Sprintf("%d rated players exceed %d total", in.RatedPlayerCount, in.TotalPlayerCount))
	}
	for _, r := range in.Ratings.Ratings {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return model.NewValidationError(opCompute, "ratings", "ratings must be finite")
		}
	}
	for _, rank := range in.Rankings.Rankings {
		if rank < 1 {
			return model.NewValidationError(opCompute, "rankings", fmt.Sprintf("rank %d is not 1-based", rank))
		}
	}
	return nil
}
