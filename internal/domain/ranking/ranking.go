// Package ranking builds the public rank list and rating list from player
// standings.
package ranking

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/pinrank/internal/domain/model"
)

// Default aggregation policy.
const (
	DefaultMinEvents      = model.RatedThreshold
	DefaultWindowDays     = 1095
	DefaultCountedResults = 15
)

// Standing is what the aggregator knows about one player.
type Standing struct {
	PlayerID         string
	DecayedPointsSum float64
	LastEventDate    time.Time
	EventCount       int
	Rating           float64
	RatingDeviation  float64
	IsRated          bool
}

// Orders is the outcome of one aggregation.
type Orders struct {
	// RankOrder lists the ranked players best first.
	RankOrder []string
	// RatingOrder lists rated players by rating, best first.
	RatingOrder []string
	// Rankings maps each ranked player to its 1-based rank.
	Rankings map[string]int
}

// Summary is a player's points standing derived from stored results.
type Summary struct {
	PlayerID         string
	DecayedPointsSum float64
	LastEventDate    time.Time
	CountedEvents    int
}

// Aggregator orders players. It is safe for concurrent use.
type Aggregator struct {
	minEvents      int
	windowDays     int
	countedResults int
}

// New builds an Aggregator.
func New(opts ...Option) (*Aggregator, error) {
	a := &Aggregator{
		minEvents:      DefaultMinEvents,
		windowDays:     DefaultWindowDays,
		countedResults: DefaultCountedResults,
	}
	for _, opt := range opts {
		opt(a)
	}

	const component = "ranking"
	switch {
	case a.minEvents < 1:
		return nil, model.NewConfigurationError(component, "ranking_min_events", "must be at least 1")
	case a.windowDays < 1:
		return nil, model.NewConfigurationError(component, "ranking_window_days", "must be at least 1")
	case a.countedResults < 1:
		return nil, model.NewConfigurationError(component, "ranking_counted_results", "must be at least 1")
	}
	return a, nil
}

// Recompute orders the standings. Only players with enough counted events
// are ranked; only rated players appear on the rating list. Every order is
// total so equal inputs always give equal outputs.
func (a *Aggregator) Recompute(standings []Standing) Orders {
	ranked := make([]Standing, 0, len(standings))
	rated := make([]Standing, 0, len(standings))
	for _, s := range standings {
		if s.EventCount >= a.minEvents {
			ranked = append(ranked, s)
		}
		if s.IsRated {
			rated = append(rated, s)
		}
	}

	slices.SortFunc(ranked, func(x, y Standing) int {
		if c := cmp.Compare(y.DecayedPointsSum, x.DecayedPointsSum); c != 0 {
			return c
		}
		if c := y.LastEventDate.Compare(x.LastEventDate); c != 0 {
			return c
		}
		return cmp.Compare(x.PlayerID, y.PlayerID)
	})
	slices.SortFunc(rated, func(x, y Standing) int {
		if c := cmp.Compare(y.Rating, x.Rating); c != 0 {
			return c
		}
		if c := cmp.Compare(x.RatingDeviation, y.RatingDeviation); c != 0 {
			return c
		}
		return cmp.Compare(x.PlayerID, y.PlayerID)
	})

	out := Orders{
		RankOrder:   make([]string, len(ranked)),
		RatingOrder: make([]string, len(rated)),
		Rankings:    make(map[string]int, len(ranked)),
	}
	for i, s := range ranked {
		out.RankOrder[i] = s.PlayerID
		out.Rankings[s.PlayerID] = i + 1
	}
	for i, s := range rated {
		out.RatingOrder[i] = s.PlayerID
	}
	return out
}

// Summarize derives each player's decayed points sum from its best results
// inside the rolling window ending at asOf. Opted-out results never count
// but still mark the player's last event. Results are not modified.
func (a *Aggregator) Summarize(results []model.Result, asOf time.Time) []Summary {
	byPlayer := make(map[string][]model.Result)
	last := make(map[string]time.Time)
	for _, r := range results {
		if r.TournamentDate.After(last[r.PlayerID]) {
			last[r.PlayerID] = r.TournamentDate
		}
		if _, ok := byPlayer[r.PlayerID]; !ok {
			byPlayer[r.PlayerID] = nil
		}
		if r.OptedOut || !a.inWindow(r.TournamentDate, asOf) {
			continue
		}
		byPlayer[r.PlayerID] = append(byPlayer[r.PlayerID], r)
	}

	out := make([]Summary, 0, len(byPlayer))
	for id, rs := range byPlayer {
		slices.SortFunc(rs, func(x, y model.Result) int {
			if c := cmp.Compare(y.DecayedPoints, x.DecayedPoints); c != 0 {
				return c
			}
			if c := y.TournamentDate.Compare(x.TournamentDate); c != 0 {
				return c
			}
			return cmp.Compare(x.TournamentID, y.TournamentID)
		})
		if len(rs) > a.countedResults {
			rs = rs[:a.countedResults]
		}

		sum := decimal.Zero
		for _, r := range rs {
			sum = sum.Add(decimal.NewFromFloat(r.DecayedPoints))
		}
		out = append(out, Summary{
			PlayerID:         id,
			DecayedPointsSum: sum.Round(model.PointsPlaces).InexactFloat64(),
			LastEventDate:    last[id],
			CountedEvents:    len(rs),
		})
	}
	slices.SortFunc(out, func(x, y Summary) int { return cmp.Compare(x.PlayerID, y.PlayerID) })
	return out
}

func (a *Aggregator) inWindow(date, asOf time.Time) bool {
	age := math.Floor(asOf.Sub(date).Hours() / 24)
	return age <= float64(a.windowDays)
}
