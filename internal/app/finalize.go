package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	repository "github.com/okian/pinrank/internal/adapters/repository"
	"github.com/okian/pinrank/internal/domain/model"
	"github.com/okian/pinrank/internal/domain/points"
	"github.com/okian/pinrank/internal/domain/rating"
	"github.com/okian/pinrank/internal/domain/valuation"
	"github.com/okian/pinrank/pkg/logger"
	"github.com/okian/pinrank/pkg/metrics"
)

const opFinalize = "finalize_tournament"

// Finalization is everything known about a finished tournament.
type Finalization struct {
	TournamentID string
	Date         time.Time
	Booster      model.Booster
	TGP          float64

	// Entrants are the final standings.
	Entrants []points.Entrant

	// Matches and Games feed the rating batch. Each game is expanded into
	// pairwise matches.
	Matches []model.Match
	Games   [][]model.GameEntry
}

// FinalizeReport describes what a finalization wrote.
type FinalizeReport struct {
	Tournament     model.Tournament
	Results        []model.Result
	RatingsApplied bool
	NewlyRated     []string
}

// FinalizeTournament values the tournament, distributes its points, stores
// the results and applies its rating batch. Finalizing the same tournament
// again recomputes and replaces its value and results, but its rating batch
// is only ever applied once. The stored tournament remembers whether its
// batch was consumed.
func (s *Service) FinalizeTournament(ctx context.Context, f Finalization) (FinalizeReport, error) {
	if err := validateFinalization(f); err != nil {
		return FinalizeReport{}, s.fail(ctx, err)
	}
	matches, err := collectMatches(f)
	if err != nil {
		return FinalizeReport{}, s.fail(ctx, err)
	}

	unlock := s.partitions.lock([]string{f.TournamentID})
	defer unlock()

	previous, err := s.store.GetTournament(ctx, f.TournamentID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return FinalizeReport{}, fmt.Errorf("load tournament %s: %w", f.TournamentID, err)
	}

	entrantIDs := make([]string, len(f.Entrants))
	for i, e := range f.Entrants {
		entrantIDs[i] = e.PlayerID
	}
	known, err := s.store.GetPlayers(ctx, entrantIDs)
	if err != nil {
		return FinalizeReport{}, fmt.Errorf("load entrants of %s: %w", f.TournamentID, err)
	}

	input := valuation.Input{
		TotalPlayerCount: len(f.Entrants),
		TGP:              f.TGP,
		Booster:          f.Booster,
	}
	for _, p := range known {
		if p.IsRated {
			input.RatedPlayerCount++
			input.Ratings.Ratings = append(input.Ratings.Ratings, p.Rating)
		}
		if p.Ranking != nil {
			input.Rankings.Rankings = append(input.Rankings.Rankings, *p.Ranking)
		}
	}

	value, err := s.calculator.Compute(input)
	if err != nil {
		return FinalizeReport{}, s.fail(ctx, err)
	}
	awards, err := s.distributor.Distribute(f.Entrants, value.FirstPlaceValue)
	if err != nil {
		return FinalizeReport{}, s.fail(ctx, err)
	}

	t := model.Tournament{
		ID:               f.TournamentID,
		Date:             f.Date,
		EventBooster:     f.Booster,
		TGP:              f.TGP,
		RatedPlayerCount: input.RatedPlayerCount,
		TotalPlayerCount: input.TotalPlayerCount,
		BaseValue:        value.BaseValue,
		RatingTVA:        value.RatingTVA,
		RankingTVA:       value.RankingTVA,
		FirstPlaceValue:  value.FirstPlaceValue,
		RatingsApplied:   previous.RatingsApplied,
	}

	results := make([]model.Result, len(awards))
	var awarded float64
	optedOut := 0
	for i, a := range awards {
		results[i] = model.Result{
			PlayerID:       a.PlayerID,
			TournamentID:   t.ID,
			TournamentDate: t.Date,
			Position:       a.Position,
			OptedOut:       a.OptedOut,
			LinearPoints:   a.LinearPoints,
			DynamicPoints:  a.DynamicPoints,
			TotalPoints:    a.TotalPoints,
			Efficiency:     a.Efficiency,
		}
		awarded += a.TotalPoints
		if a.OptedOut {
			optedOut++
		}
	}
	results = s.decay.ApplyAll(ctx, results, s.now())

	if err := s.store.SaveTournament(ctx, t); err != nil {
		return FinalizeReport{}, fmt.Errorf("save tournament %s: %w", t.ID, err)
	}
	if err := s.store.ReplaceResults(ctx, t.ID, results); err != nil {
		return FinalizeReport{}, fmt.Errorf("save results of %s: %w", t.ID, err)
	}
	metrics.RecordTournamentValued(t.FirstPlaceValue)
	metrics.RecordPointsAwarded(awarded, optedOut)

	applied, newlyRated, err := s.applyRatings(ctx, t, entrantIDs, matches)
	if err != nil {
		return FinalizeReport{}, s.fail(ctx, err)
	}
	if applied {
		t.RatingsApplied = true
		if err := s.store.SaveTournament(ctx, t); err != nil {
			return FinalizeReport{}, fmt.Errorf("mark ratings of %s applied: %w", t.ID, err)
		}
	}

	s.logger.Info(ctx, "tournament finalized",
		logger.String("tournament", t.ID),
		logger.Float64("firstPlaceValue", t.FirstPlaceValue),
		logger.Int("entrants", len(results)),
		logger.Bool("ratingsApplied", applied),
		logger.Int("newlyRated", len(newlyRated)),
	)
	return FinalizeReport{
		Tournament:     t,
		Results:        results,
		RatingsApplied: applied,
		NewlyRated:     newlyRated,
	}, nil
}

// applyRatings runs the tournament's rating batch at most once and records
// the event date on every participant. A batch is skipped when the stored
// tournament is marked as applied or the ledger has seen it. Participants
// are locked for the whole read-modify-write.
func (s *Service) applyRatings(ctx context.Context, t model.Tournament, entrants []string, matches []model.Match) (bool, []string, error) {
	participants := slices.Clone(entrants)
	for _, m := range matches {
		participants = append(participants, m.PlayerID, m.OpponentID)
	}
	slices.Sort(participants)
	participants = slices.Compact(participants)

	unlock := s.locks.lock(participants)
	defer unlock()

	stored, err := s.store.GetPlayers(ctx, participants)
	if err != nil {
		return false, nil, fmt.Errorf("load participants of %s: %w", t.ID, err)
	}
	byID := make(map[string]model.Player, len(stored))
	for _, p := range stored {
		byID[p.ID] = p
	}

	key := ratingBatchKey(t.ID)
	apply := len(matches) > 0
	if apply {
		seen := s.ledger.SeenAndRecord(ctx, key)
		if seen || t.RatingsApplied {
			apply = false
			metrics.RecordRatingBatchSkipped()
			s.logger.Info(ctx, "rating batch already applied", logger.String("tournament", t.ID))
		}
	}

	updated := make(map[string]rating.PlayerState)
	if apply {
		snapshot := make([]rating.PlayerState, 0, len(participants))
		for _, id := range participants {
			if p, ok := byID[id]; ok {
				snapshot = append(snapshot, playerState(p))
			} else {
				snapshot = append(snapshot, s.rating.NewPlayer(id))
			}
		}
		states, err := s.rating.UpdateContext(ctx, snapshot, matches, t.Date)
		if err != nil {
			s.ledger.Unrecord(ctx, key)
			return false, nil, err
		}
		for _, st := range states {
			updated[st.ID] = st
		}
	}

	save := make([]model.Player, 0, len(participants))
	var newlyRated []string
	moved := 0
	for _, id := range participants {
		p, ok := byID[id]
		if !ok {
			fresh := s.rating.NewPlayer(id)
			p = model.Player{ID: id, Rating: fresh.Rating, RatingDeviation: fresh.RatingDeviation}
		}
		if st, ok := updated[id]; ok && st.EventCount != p.EventCount {
			if st.IsRated && !p.IsRated {
				newlyRated = append(newlyRated, id)
			}
			p.Rating = st.Rating
			p.RatingDeviation = st.RatingDeviation
			p.EventCount = st.EventCount
			p.IsRated = p.IsRated || st.IsRated
			if st.LastRatingUpdate.After(p.LastRatingUpdate) {
				p.LastRatingUpdate = st.LastRatingUpdate
			}
			moved++
		}
		if t.Date.After(p.LastEventDate) {
			p.LastEventDate = t.Date
		}
		save = append(save, p)
	}

	if err := s.store.SavePlayers(ctx, save); err != nil {
		if apply {
			s.ledger.Unrecord(ctx, key)
		}
		return false, nil, fmt.Errorf("save participants of %s: %w", t.ID, err)
	}
	if apply {
		metrics.RecordRatingUpdates(moved, len(newlyRated))
	}
	return apply, newlyRated, nil
}

func ratingBatchKey(tournamentID string) string {
	return "rating:" + tournamentID
}

func playerState(p model.Player) rating.PlayerState {
	return rating.PlayerState{
		ID:               p.ID,
		Rating:           p.Rating,
		RatingDeviation:  p.RatingDeviation,
		EventCount:       p.EventCount,
		IsRated:          p.IsRated,
		LastRatingUpdate: p.LastRatingUpdate,
		LastEventDate:    p.LastEventDate,
	}
}

func validateFinalization(f Finalization) error {
	switch {
	case f.TournamentID == "":
		return model.NewValidationError(opFinalize, "tournament_id", "must not be empty")
	case f.Date.IsZero():
		return model.NewValidationError(opFinalize, "date", "must be set")
	case len(f.Entrants) == 0:
		return model.NewValidationError(opFinalize, "entrants", "a tournament needs at least one entrant")
	}
	return nil
}

func collectMatches(f Finalization) ([]model.Match, error) {
	matches := slices.Clone(f.Matches)
	for _, game := range f.Games {
		expanded, err := rating.ExpandGame(game)
		if err != nil {
			return nil, err
		}
		matches = append(matches, expanded...)
	}
	for i, m := range matches {
		if m.PlayerID == "" || m.OpponentID == "" {
			return nil, model.NewValidationError(opFinalize, "match", fmt.Sprintf("match %d is missing a player", i))
		}
		if m.PlayerID == m.OpponentID {
			return nil, model.NewValidationError(opFinalize, "match", fmt.Sprintf("match %d pits %s against themselves", i, m.PlayerID))
		}
		if _, ok := m.Outcome.Score(); !ok {
			return nil, model.NewValidationError(opFinalize, "outcome", fmt.Sprintf("match %d has unknown outcome %q", i, m.Outcome))
		}
	}
	return matches, nil
}
