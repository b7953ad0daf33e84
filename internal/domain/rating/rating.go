// Package rating maintains player skill ratings with a Glicko-style batch
// update. A tournament's matches form one rating period: every expectation
// is computed from the ratings as they stood before the batch, so the order
// of matches never matters.
//
// Variable names follow Glickman's paper:
//   - q: the scale constant ln(10)/400.
//   - g: weight that discounts opponents with uncertain ratings.
//   - e: expected score against an opponent.
//   - d2: variance of the rating estimate from this period's games alone.
package rating

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/okian/pinrank/internal/domain/model"
	"github.com/okian/pinrank/pkg/logger"
	"github.com/okian/pinrank/pkg/metrics"
)

const opUpdate = "update_ratings"

// WarningUnknownOpponent is the warning kind emitted when a match names a
// player missing from the snapshot.
const WarningUnknownOpponent = "unknown_opponent"

// Default rating parameters.
const (
	DefaultInitialRating    = 1500.0
	DefaultInitialDeviation = 350.0
	DefaultDeviationFloor   = 30.0
	DefaultInactivityGrowth = 2.5
	DefaultLearningRate     = 1.0
)

const q = math.Ln10 / 400

// PlayerState is the rating part of a player.
type PlayerState struct {
	ID               string
	Rating           float64
	RatingDeviation  float64
	EventCount       int
	IsRated          bool
	LastRatingUpdate time.Time
	// LastEventDate is when the player last competed. Idle deviation growth
	// is measured from it, or from LastRatingUpdate when it is unset.
	LastEventDate time.Time
}

// Engine applies rating periods. It is safe for concurrent use.
type Engine struct {
	initialRating    float64
	initialDeviation float64 // also the deviation ceiling
	deviationFloor   float64
	inactivityGrowth float64
	learningRate     float64
	ratedThreshold   int
	log              logger.Logger
}

// New builds an Engine and validates its parameters.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		initialRating:    DefaultInitialRating,
		initialDeviation: DefaultInitialDeviation,
		deviationFloor:   DefaultDeviationFloor,
		inactivityGrowth: DefaultInactivityGrowth,
		learningRate:     DefaultLearningRate,
		ratedThreshold:   model.RatedThreshold,
		log:              logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	const component = "rating"
	switch {
	case e.deviationFloor <= 0 || e.initialDeviation < e.deviationFloor:
		return nil, model.NewConfigurationError(component, "deviation", "floor must be positive and not above the initial deviation")
	case e.inactivityGrowth < 0:
		return nil, model.NewConfigurationError(component, "inactivity_growth", "must not be negative")
	case e.learningRate <= 0:
		return nil, model.NewConfigurationError(component, "learning_rate", "must be positive")
	case e.ratedThreshold < 1:
		return nil, model.NewConfigurationError(component, "rated_threshold", "must be at least 1")
	}
	return e, nil
}

// NewPlayer returns the state of a player who has never competed.
func (e *Engine) NewPlayer(id string) PlayerState {
	return PlayerState{ID: id, Rating: e.initialRating, RatingDeviation: e.initialDeviation}
}

// term is one game from one player's point of view.
type term struct {
	g, e, score float64
}

// Update applies one batch of matches to the snapshot and returns the new
// states. Players in the snapshot without matches are returned unchanged.
// Players that appear only in matches start from the initial rating and are
// appended after the snapshot, ordered by id.
func (e *Engine) Update(snapshot []PlayerState, matches []model.Match, asOf time.Time) ([]PlayerState, error) {
	return e.UpdateContext(context.Background(), snapshot, matches, asOf)
}

// UpdateContext is Update with a context for logging.
func (e *Engine) UpdateContext(ctx context.Context, snapshot []PlayerState, matches []model.Match, asOf time.Time) ([]PlayerState, error) {
	before := make(map[string]PlayerState, len(snapshot))
	for _, p := range snapshot {
		if p.ID == "" {
			return nil, model.NewValidationError(opUpdate, "player_id", "snapshot contains an empty id")
		}
		if _, dup := before[p.ID]; dup {
			return nil, model.NewValidationError(opUpdate, "player_id", fmt.Sprintf("player %s appears twice in the snapshot", p.ID))
		}
		before[p.ID] = p
	}

	var unknown []string
	lookup := func(id string) PlayerState {
		if p, ok := before[id]; ok {
			return p
		}
		e.log.Warn(ctx, "match names a player outside the snapshot, using initial rating", logger.String("player", id))
		metrics.RecordWarning(WarningUnknownOpponent)
		p := e.NewPlayer(id)
		before[id] = p
		unknown = append(unknown, id)
		return p
	}

	terms := make(map[string][]term)
	for i, m := range matches {
		if m.PlayerID == "" || m.OpponentID == "" {
			return nil, model.NewValidationError(opUpdate, "match", fmt.Sprintf("match %d is missing a player", i))
		}
		if m.PlayerID == m.OpponentID {
			return nil, model.NewValidationError(opUpdate, "match", fmt.Sprintf("match %d pits %s against themselves", i, m.PlayerID))
		}
		score, ok := m.Outcome.Score()
		if !ok {
			return nil, model.NewValidationError(opUpdate, "outcome", fmt.Sprintf("match %d has unknown outcome %q", i, m.Outcome))
		}
		a, b := lookup(m.PlayerID), lookup(m.OpponentID)
		terms[a.ID] = append(terms[a.ID], newTerm(a, b, score))
		terms[b.ID] = append(terms[b.ID], newTerm(b, a, 1-score))
	}

	slices.Sort(unknown)
	out := make([]PlayerState, 0, len(snapshot)+len(unknown))
	for _, p := range snapshot {
		out = append(out, e.period(p, terms[p.ID], asOf))
	}
	for _, id := range unknown {
		out = append(out, e.period(before[id], terms[id], asOf))
	}
	return out, nil
}

func newTerm(player, opponent PlayerState, score float64) term {
	g := gFunc(opponent.RatingDeviation)
	return term{g: g, e: expected(player.Rating, opponent.Rating, g), score: score}
}

// period updates one player from the games it played this batch.
func (e *Engine) period(p PlayerState, games []term, asOf time.Time) PlayerState {
	if len(games) == 0 {
		return p
	}

	rd0 := e.inflate(p, asOf)

	var variance, delta float64
	for _, t := range games {
		variance += t.g * t.g * t.e * (1 - t.e)
		delta += t.g * (t.score - t.e)
	}
	d2 := 1 / (q * q * variance)
	precision := 1/(rd0*rd0) + 1/d2

	p.Rating += e.learningRate * q / precision * delta
	p.RatingDeviation = math.Min(math.Max(math.Sqrt(1/precision), e.deviationFloor), e.initialDeviation)
	p.EventCount++
	if p.EventCount >= e.ratedThreshold {
		p.IsRated = true
	}
	// A batch older than the player's history never moves the dates back.
	if asOf.After(p.LastRatingUpdate) {
		p.LastRatingUpdate = asOf
	}
	if asOf.After(p.LastEventDate) {
		p.LastEventDate = asOf
	}
	return p
}

// inflate grows the deviation for the days a player sat idle since their
// last event, capped at the initial deviation.
func (e *Engine) inflate(p PlayerState, asOf time.Time) float64 {
	rd := p.RatingDeviation
	since := p.LastEventDate
	if since.IsZero() {
		since = p.LastRatingUpdate
	}
	if since.IsZero() || !asOf.After(since) {
		return math.Min(rd, e.initialDeviation)
	}
	idleDays := math.Floor(asOf.Sub(since).Hours() / 24)
	return math.Min(math.Sqrt(rd*rd+e.inactivityGrowth*e.inactivityGrowth*idleDays), e.initialDeviation)
}

func gFunc(rd float64) float64 {
	return 1 / math.Sqrt(1+3*q*q*rd*rd/(math.Pi*math.Pi))
}

func expected(r, rj, g float64) float64 {
	return 1 / (1 + math.Pow(10, -g*(r-rj)/400))
}

// ExpandGame turns one multi-player game into pairwise matches. The better
// finishing position wins; equal positions tie. A game of k players yields
// k(k-1)/2 matches, each recorded from the better placed player's side.
func ExpandGame(entries []model.GameEntry) ([]model.Match, error) {
	const op = "expand_game"
	if len(entries) < 2 {
		return nil, model.NewValidationError(op, "entries", "a game needs at least two players")
	}
	seen := make(map[string]struct{}, len(entries))
	for _, en := range entries {
		if en.PlayerID == "" {
			return nil, model.NewValidationError(op, "player_id", "must not be empty")
		}
		if en.Position < 1 {
			return nil, model.NewValidationError(op, "position", fmt.Sprintf("position %d of %s is not 1-based", en.Position, en.PlayerID))
		}
		if _, dup := seen[en.PlayerID]; dup {
			return nil, model.NewValidationError(op, "player_id", fmt.Sprintf("player %s appears twice", en.PlayerID))
		}
		seen[en.PlayerID] = struct{}{}
	}

	matches := make([]model.Match, 0, len(entries)*(len(entries)-1)/2)
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i], entries[j]
			if b.Position < a.Position {
				a, b = b, a
			}
			outcome := model.OutcomeWin
			if a.Position == b.Position {
				outcome = model.OutcomeTie
			}
			matches = append(matches, model.Match{PlayerID: a.PlayerID, OpponentID: b.PlayerID, Outcome: outcome})
		}
	}
	return matches, nil
}
