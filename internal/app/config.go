package service

import (
	"context"

	"github.com/okian/pinrank/internal/config"
	"github.com/okian/pinrank/internal/domain/decay"
	"github.com/okian/pinrank/internal/domain/points"
	"github.com/okian/pinrank/internal/domain/ranking"
	"github.com/okian/pinrank/internal/domain/rating"
	"github.com/okian/pinrank/internal/domain/valuation"
	"github.com/okian/pinrank/pkg/logger"
)

// NewFromConfig builds every engine component from cfg and constructs the
// Service. Extra options are applied after the configured ones.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	boosters, err := cfg.Boosters()
	if err != nil {
		return nil, err
	}
	log := logger.Get().Named("service")

	calculator, err := valuation.New(
		valuation.WithBaseValue(cfg.BaseValuePerPlayer, cfg.BaseValueCap),
		valuation.WithTVACaps(cfg.RatingTVACap, cfg.RankingTVACap, cfg.TotalTVACap),
		valuation.WithBoosterMultipliers(boosters),
	)
	if err != nil {
		return nil, err
	}
	distributor, err := points.New(
		points.WithLinearShare(cfg.LinearShare),
		points.WithDynamicCurve(cfg.DynamicExponent, cfg.DynamicPower, cfg.DynamicFieldShare, cfg.DynamicFieldCap),
	)
	if err != nil {
		return nil, err
	}
	decayEngine, err := decay.New(
		decay.WithSteps(cfg.DecaySteps),
		decay.WithLogger(log.Named("decay")),
	)
	if err != nil {
		return nil, err
	}
	ratingEngine, err := rating.New(
		rating.WithInitialRating(cfg.InitialRating, cfg.InitialDeviation),
		rating.WithDeviationFloor(cfg.DeviationFloor),
		rating.WithInactivityGrowth(cfg.InactivityGrowth),
		rating.WithLearningRate(cfg.LearningRate),
		rating.WithRatedThreshold(cfg.RatedThreshold),
		rating.WithLogger(log.Named("rating")),
	)
	if err != nil {
		return nil, err
	}
	aggregator, err := ranking.New(
		ranking.WithMinEvents(cfg.RankingMinEvents),
		ranking.WithWindow(cfg.RankingWindowDays, cfg.RankingCountedResults),
	)
	if err != nil {
		return nil, err
	}

	all := []Option{
		WithLogger(log),
		WithCalculator(calculator),
		WithDistributor(distributor),
		WithDecayEngine(decayEngine),
		WithRatingEngine(ratingEngine),
		WithAggregator(aggregator),
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithDedupeSize(cfg.DedupeSize),
	}
	return New(ctx, append(all, opts...)...)
}
