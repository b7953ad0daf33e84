package service

import (
	"context"
	"fmt"
	"time"

	repository "github.com/okian/pinrank/internal/adapters/repository"
	"github.com/okian/pinrank/internal/domain/model"
	"github.com/okian/pinrank/internal/domain/ranking"
	"github.com/okian/pinrank/internal/domain/types"
	"github.com/okian/pinrank/pkg/logger"
	"github.com/okian/pinrank/pkg/metrics"
)

// RecomputeRankings rebuilds both public lists from the stored results as
// of asOf (zero means now), writes each player's ranking and publishes the
// lists. Results are read as they were last swept.
func (s *Service) RecomputeRankings(ctx context.Context, asOf time.Time) (repository.Snapshot, error) {
	start := time.Now()
	if asOf.IsZero() {
		asOf = s.now()
	}

	results, err := s.store.ListResults(ctx)
	if err != nil {
		return repository.Snapshot{}, fmt.Errorf("list results: %w", err)
	}
	summaries := make(map[string]ranking.Summary)
	for _, sum := range s.aggregator.Summarize(results, asOf) {
		summaries[sum.PlayerID] = sum
	}

	listed, err := s.store.ListPlayers(ctx)
	if err != nil {
		return repository.Snapshot{}, fmt.Errorf("list players: %w", err)
	}
	ids := make([]string, len(listed))
	for i, p := range listed {
		ids[i] = p.ID
	}

	unlock := s.locks.lock(ids)
	defer unlock()

	players, err := s.store.GetPlayers(ctx, ids)
	if err != nil {
		return repository.Snapshot{}, fmt.Errorf("load players: %w", err)
	}

	standings := make([]ranking.Standing, len(players))
	byID := make(map[string]model.Player, len(players))
	lastEvent := make(map[string]time.Time, len(players))
	for i, p := range players {
		byID[p.ID] = p
		st := ranking.Standing{
			PlayerID:        p.ID,
			LastEventDate:   p.LastEventDate,
			EventCount:      p.EventCount,
			Rating:          p.Rating,
			RatingDeviation: p.RatingDeviation,
			IsRated:         p.IsRated,
		}
		if sum, ok := summaries[p.ID]; ok {
			st.DecayedPointsSum = sum.DecayedPointsSum
			st.LastEventDate = sum.LastEventDate
		}
		standings[i] = st
		lastEvent[p.ID] = st.LastEventDate
	}
	orders := s.aggregator.Recompute(standings)

	var changed []model.Player
	for _, p := range players {
		rank, ranked := orders.Rankings[p.ID]
		switch {
		case ranked && (p.Ranking == nil || *p.Ranking != rank):
			p.Ranking = &rank
			changed = append(changed, p)
		case !ranked && p.Ranking != nil:
			p.Ranking = nil
			changed = append(changed, p)
		}
	}
	if len(changed) > 0 {
		if err := s.store.SavePlayers(ctx, changed); err != nil {
			return repository.Snapshot{}, fmt.Errorf("save rankings: %w", err)
		}
	}

	rankList := make([]types.RankEntry, len(orders.RankOrder))
	for i, id := range orders.RankOrder {
		p := byID[id]
		rankList[i] = types.RankEntry{
			Rank:          i + 1,
			PlayerID:      id,
			Points:        summaries[id].DecayedPointsSum,
			EventCount:    p.EventCount,
			LastEventDate: lastEvent[id],
		}
	}
	ratingList := make([]types.RatingEntry, len(orders.RatingOrder))
	for i, id := range orders.RatingOrder {
		p := byID[id]
		ratingList[i] = types.RatingEntry{
			Position:        i + 1,
			PlayerID:        id,
			Rating:          model.RoundPoints(p.Rating),
			RatingDeviation: model.RoundPoints(p.RatingDeviation),
		}
	}

	if err := s.store.PublishLists(ctx, rankList, ratingList); err != nil {
		return repository.Snapshot{}, fmt.Errorf("publish lists: %w", err)
	}
	metrics.RecordRankingRecompute(time.Since(start), len(rankList), len(ratingList))
	s.logger.Info(ctx, "rankings recomputed",
		logger.Time("asOf", asOf),
		logger.Int("ranked", len(rankList)),
		logger.Int("rated", len(ratingList)),
		logger.Int("changed", len(changed)),
	)
	return s.store.Lists(ctx), nil
}

// RankList returns the last published rank list.
func (s *Service) RankList(ctx context.Context) []types.RankEntry {
	return s.store.Lists(ctx).RankList
}

// RatingList returns the last published rating list.
func (s *Service) RatingList(ctx context.Context) []types.RatingEntry {
	return s.store.Lists(ctx).RatingList
}
