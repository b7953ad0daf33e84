// Package types contains the public list rows produced by the engine.
package types

import "time"

// RankEntry is one row of the points-based rank list.
type RankEntry struct {
	Rank          int       `json:"rank"`
	PlayerID      string    `json:"player_id"`
	Points        float64   `json:"points"`
	EventCount    int       `json:"event_count"`
	LastEventDate time.Time `json:"last_event_date"`
}

// RatingEntry is one row of the rating list.
type RatingEntry struct {
	Position        int     `json:"position"`
	PlayerID        string  `json:"player_id"`
	Rating          float64 `json:"rating"`
	RatingDeviation float64 `json:"rating_deviation"`
}
