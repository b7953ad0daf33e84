package service

import (
	"time"

	repository "github.com/okian/pinrank/internal/adapters/repository"
	"github.com/okian/pinrank/internal/domain/decay"
	"github.com/okian/pinrank/internal/domain/dedupe"
	"github.com/okian/pinrank/internal/domain/points"
	"github.com/okian/pinrank/internal/domain/ranking"
	"github.com/okian/pinrank/internal/domain/rating"
	"github.com/okian/pinrank/internal/domain/valuation"
	"github.com/okian/pinrank/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the storage collaborator. The caller keeps ownership.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithCalculator sets the tournament value calculator.
func WithCalculator(c *valuation.Calculator) Option {
	return func(s *Service) { s.calculator = c }
}

// WithDistributor sets the points distributor.
func WithDistributor(d *points.Distributor) Option {
	return func(s *Service) { s.distributor = d }
}

// WithDecayEngine sets the time decay engine.
func WithDecayEngine(e *decay.Engine) Option {
	return func(s *Service) { s.decay = e }
}

// WithRatingEngine sets the rating engine.
func WithRatingEngine(e *rating.Engine) Option {
	return func(s *Service) { s.rating = e }
}

// WithAggregator sets the ranking aggregator.
func WithAggregator(a *ranking.Aggregator) Option {
	return func(s *Service) { s.aggregator = a }
}

// WithDeduper sets the ledger of applied rating batches.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) { s.ledger = d }
}

// WithWorkerCount sets the number of decay sweep workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the sweep partition queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the default rating batch ledger.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithClock sets the time source used when no instant is given.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
