// Package points distributes a tournament's first place value across its
// finishing positions.
package points

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/okian/pinrank/internal/domain/model"
)

const opDistribute = "distribute_points"

// Default curve parameters.
const (
	defaultLinearShare     = 0.10
	defaultDynamicExponent = 0.7
	defaultDynamicPower    = 3.0
	defaultFieldShare      = 0.5
	defaultFieldCap        = 64.0
)

// minimumAward is the participation floor for non opted-out entrants.
var minimumAward = decimal.New(1, -model.PointsPlaces)

// Entrant is one finisher as supplied by the caller. Ties share a position
// and follow standard competition ordering (1, 2, 2, 4).
type Entrant struct {
	PlayerID string
	Position int
	OptedOut bool
}

// Award is the points outcome for one entrant.
type Award struct {
	PlayerID        string
	Position        int
	ScoringPosition int // position after opted-out entrants are removed; 0 when opted out
	OptedOut        bool
	LinearPoints    float64
	DynamicPoints   float64
	TotalPoints     float64
	Efficiency      float64
}

// Distributor maps finishing positions to points. It is safe for
// concurrent use.
type Distributor struct {
	linearShare     float64
	dynamicExponent float64
	dynamicPower    float64
	fieldShare      float64
	fieldCap        float64
}

// New builds a Distributor and validates its curve parameters.
func New(opts ...Option) (*Distributor, error) {
	d := &Distributor{
		linearShare:     defaultLinearShare,
		dynamicExponent: defaultDynamicExponent,
		dynamicPower:    defaultDynamicPower,
		fieldShare:      defaultFieldShare,
		fieldCap:        defaultFieldCap,
	}
	for _, opt := range opts {
		opt(d)
	}

	const component = "points"
	switch {
	case d.linearShare <= 0 || d.linearShare >= 1:
		return nil, model.NewConfigurationError(component, "linear_share", "must be inside (0,1)")
	case d.dynamicExponent <= 0 || d.dynamicPower <= 0:
		return nil, model.NewConfigurationError(component, "dynamic_curve", "exponent and power must be positive")
	case d.fieldShare <= 0 || d.fieldCap < 1:
		return nil, model.NewConfigurationError(component, "dynamic_field", "share must be positive and cap at least 1")
	}
	return d, nil
}

// Distribute awards points to every entrant. Opted-out entrants get a zero
// row and do not count towards the field size. Position 1 always receives
// exactly firstPlaceValue.
func (d *Distributor) Distribute(entrants []Entrant, firstPlaceValue float64) ([]Award, error) {
	if math.IsNaN(firstPlaceValue) || math.IsInf(firstPlaceValue, 0) || firstPlaceValue < 0 {
		return nil, model.NewValidationError(opDistribute, "first_place_value", fmt.Sprintf("%v is not a non-negative number", firstPlaceValue))
	}
	if err := validateEntrants(entrants); err != nil {
		return nil, err
	}

	fpv := decimal.NewFromFloat(firstPlaceValue).Round(model.PointsPlaces)

	scoring := make([]int, 0, len(entrants))
	for i, e := range entrants {
		if !e.OptedOut {
			scoring = append(scoring, i)
		}
	}
	slices.SortStableFunc(scoring, func(a, b int) int {
		if c := cmp.Compare(entrants[a].Position, entrants[b].Position); c != 0 {
			return c
		}
		return cmp.Compare(entrants[a].PlayerID, entrants[b].PlayerID)
	})

	awards := make([]Award, len(entrants))
	for i, e := range entrants {
		awards[i] = Award{PlayerID: e.PlayerID, Position: e.Position, OptedOut: e.OptedOut}
	}

	n := len(scoring)
	if n == 0 {
		return awards, nil
	}

	slots := d.slots(n, fpv)
	for rank, idx := range scoring {
		pos := rank + 1
		if rank > 0 && entrants[idx].Position == entrants[scoring[rank-1]].Position {
			pos = awards[scoring[rank-1]].ScoringPosition
		}
		s := slots[pos-1]
		awards[idx].ScoringPosition = pos
		awards[idx].LinearPoints = s.linear.InexactFloat64()
		awards[idx].DynamicPoints = s.dynamic.InexactFloat64()
		awards[idx].TotalPoints = s.total().InexactFloat64()
		awards[idx].Efficiency = efficiency(s.total(), fpv)
	}
	return awards, nil
}

type slot struct {
	linear  decimal.Decimal
	dynamic decimal.Decimal
}

func (s slot) total() decimal.Decimal { return s.linear.Add(s.dynamic) }

// slots computes the award of every scoring position 1..n. The result is
// non-increasing and the first slot totals exactly fpv.
func (d *Distributor) slots(n int, fpv decimal.Decimal) []slot {
	out := make([]slot, n)
	if fpv.IsZero() {
		for i := range out {
			out[i] = slot{linear: decimal.Zero, dynamic: decimal.Zero}
		}
		return out
	}

	value := fpv.InexactFloat64()
	field := math.Max(1, math.Min(float64(n)*d.fieldShare, d.fieldCap))
	linearPool := d.linearShare * value
	dynamicPool := (1 - d.linearShare) * value

	for i := range out {
		p := float64(i + 1)
		linear := decimal.NewFromFloat(linearPool * (float64(n) + 1 - p) / float64(n)).Round(model.PointsPlaces)
		if linear.LessThan(minimumAward) {
			linear = minimumAward
		}
		curve := 1 - math.Pow((p-1)/field, d.dynamicExponent)
		dynamic := decimal.NewFromFloat(dynamicPool * math.Pow(math.Max(0, curve), d.dynamicPower)).Round(model.PointsPlaces)
		out[i] = slot{linear: linear, dynamic: dynamic}
	}

	first := decimal.NewFromFloat(linearPool).Round(model.PointsPlaces)
	if first.GreaterThan(fpv) {
		first = fpv
	}
	out[0] = slot{linear: first, dynamic: fpv.Sub(first)}

	// Rounding both components up can lift a slot above its predecessor.
	for i := 1; i < n; i++ {
		if excess := out[i].total().Sub(out[i-1].total()); excess.IsPositive() {
			out[i].dynamic = decimal.Max(decimal.Zero, out[i].dynamic.Sub(excess))
			if out[i].total().GreaterThan(out[i-1].total()) {
				out[i].linear = out[i-1].total()
				out[i].dynamic = decimal.Zero
			}
		}
	}
	return out
}

func efficiency(total, fpv decimal.Decimal) float64 {
	if fpv.IsZero() {
		return 0
	}
	return total.Div(fpv).Mul(decimal.NewFromInt(100)).Round(model.PointsPlaces).InexactFloat64()
}

func validateEntrants(entrants []Entrant) error {
	if len(entrants) == 0 {
		return model.NewValidationError(opDistribute, "entrants", "at least one entrant is required")
	}

	seen := make(map[string]struct{}, len(entrants))
	positions := make([]int, 0, len(entrants))
	for _, e := range entrants {
		if e.PlayerID == "" {
			return model.NewValidationError(opDistribute, "player_id", "must not be empty")
		}
		if _, dup := seen[e.PlayerID]; dup {
			return model.NewValidationError(opDistribute, "player_id", fmt.Sprintf("player %s appears twice", e.PlayerID))
		}
		seen[e.PlayerID] = struct{}{}
		if e.Position < 1 || e.Position > len(entrants) {
			return model.NewValidationError(opDistribute, "position",
				fmt.Sprintf("position %d of %s is outside 1..%d", e.Position, e.PlayerID, len(entrants)))
		}
		positions = append(positions, e.Position)
	}

	slices.Sort(positions)
	expected := 1
	for i := 0; i < len(positions); {
		p := positions[i]
		if p != expected {
			return model.NewValidationError(opDistribute, "position", fmt.Sprintf("gap in positions: expected %d, got %d", expected, p))
		}
		j := i
		for j < len(positions) && positions[j] == p {
			j++
		}
		expected = p + (j - i)
		i = j
	}
	return nil
}
