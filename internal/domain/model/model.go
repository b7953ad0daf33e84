// Package model contains the domain records shared by the ranking engine
// components and the storage collaborator.
package model

import "time"

// RatedThreshold is the number of counted events after which a player
// becomes rated.
const RatedThreshold = 5

// Player is a competitor's rating and ranking state.
type Player struct {
	ID               string
	Rating           float64
	RatingDeviation  float64
	IsRated          bool
	EventCount       int
	Ranking          *int // nil until the player qualifies for the rank list
	LastRatingUpdate time.Time
	LastEventDate    time.Time
}

// Tournament holds the inputs and derived value of one event. The derived
// fields are replaced wholesale on every finalization.
type Tournament struct {
	ID               string
	Date             time.Time
	EventBooster     Booster
	TGP              float64
	RatedPlayerCount int
	TotalPlayerCount int

	BaseValue       float64
	RatingTVA       float64
	RankingTVA      float64
	FirstPlaceValue float64

	// RatingsApplied is set once the tournament's rating batch has been
	// consumed. It survives re-finalization.
	RatingsApplied bool
}

// Result is one player's finish in one tournament.
type Result struct {
	PlayerID       string
	TournamentID   string
	TournamentDate time.Time
	Position       int
	OptedOut       bool

	LinearPoints  float64
	DynamicPoints float64
	TotalPoints   float64
	Efficiency    float64

	// Refreshed together by every decay sweep.
	AgeInDays       int
	DecayMultiplier float64
	DecayedPoints   float64
}

// Key identifies a result within the store.
func (r Result) Key() ResultKey {
	return ResultKey{PlayerID: r.PlayerID, TournamentID: r.TournamentID}
}

// ResultKey is the natural key of a Result.
type ResultKey struct {
	PlayerID     string
	TournamentID string
}

// Match is a head-to-head outcome from PlayerID's perspective.
type Match struct {
	PlayerID   string
	OpponentID string
	Outcome    Outcome
}

// GameEntry is one player's finish inside a multi-player game.
type GameEntry struct {
	PlayerID string
	Position int
}
