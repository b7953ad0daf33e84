package model

import (
	"fmt"
	"strings"
)

// Booster is the event booster tier of a tournament.
type Booster string

// Event booster tiers, lowest to highest.
const (
	BoosterNone               Booster = "NONE"
	BoosterCertified          Booster = "CERTIFIED"
	BoosterCertifiedPlus      Booster = "CERTIFIED_PLUS"
	BoosterChampionshipSeries Booster = "CHAMPIONSHIP_SERIES"
	BoosterMajor              Booster = "MAJOR"
)

// Boosters lists every tier in ascending order.
func Boosters() []Booster {
	return []Booster{BoosterNone, BoosterCertified, BoosterCertifiedPlus, BoosterChampionshipSeries, BoosterMajor}
}

// Valid reports whether b is a known tier.
func (b Booster) Valid() bool {
	switch b {
	case BoosterNone, BoosterCertified, BoosterCertifiedPlus, BoosterChampionshipSeries, BoosterMajor:
		return true
	}
	return false
}

// ParseBooster parses a booster code case-insensitively. An empty code is NONE.
func ParseBooster(code string) (Booster, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return BoosterNone, nil
	}
	b := Booster(strings.ReplaceAll(normalized, "-", "_"))
	if !b.Valid() {
		return "", NewValidationError("parse_booster", "event_booster", fmt.Sprintf("unknown booster code %q", code))
	}
	return b, nil
}

// Outcome is the result of a match from one side's perspective.
type Outcome string

// Match outcomes.
const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLoss Outcome = "LOSS"
	OutcomeTie  Outcome = "TIE"
)

// Score maps an outcome to 1, 0 or 0.5.
func (o Outcome) Score() (float64, bool) {
	switch o {
	case OutcomeWin:
		return 1, true
	case OutcomeLoss:
		return 0, true
	case OutcomeTie:
		return 0.5, true
	}
	return 0, false
}

// Invert returns the outcome seen from the opponent's side.
func (o Outcome) Invert() Outcome {
	switch o {
	case OutcomeWin:
		return OutcomeLoss
	case OutcomeLoss:
		return OutcomeWin
	}
	return o
}
