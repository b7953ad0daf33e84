// Package service wires the ranking engine components to the storage
// collaborator and runs the three engine workflows: tournament
// finalization, the decay sweep, and rank list recomputation.
package service

import (
	"context"
	"errors"
	"runtime"
	"time"

	repository "github.com/okian/pinrank/internal/adapters/repository"
	"github.com/okian/pinrank/internal/domain/decay"
	"github.com/okian/pinrank/internal/domain/dedupe"
	"github.com/okian/pinrank/internal/domain/model"
	"github.com/okian/pinrank/internal/domain/points"
	"github.com/okian/pinrank/internal/domain/ranking"
	"github.com/okian/pinrank/internal/domain/rating"
	"github.com/okian/pinrank/internal/domain/valuation"
	"github.com/okian/pinrank/pkg/logger"
	"github.com/okian/pinrank/pkg/metrics"
)

// Service runs the engine workflows. It is safe for concurrent use.
type Service struct {
	// Core components
	store       repository.Store
	ownsStore   bool
	calculator  *valuation.Calculator
	distributor *points.Distributor
	decay       *decay.Engine
	rating      *rating.Engine
	aggregator  *ranking.Aggregator
	ledger      dedupe.Deduper
	locks       *keyedLocks
	// partitions serializes finalization and sweeping of one tournament.
	partitions  *keyedLocks

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	now         func() time.Time

	logger logger.Logger
}

// New constructs a Service. Components that were not supplied through
// options are built with their default policy, and an in-memory store is
// created when none is given.
func New(ctx context.Context, opts ...Option) (*Service, error) {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   1024,
		dedupeSize:  50_000,
		now:         time.Now,
		locks:       newKeyedLocks(),
		partitions:  newKeyedLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	var err error
	if s.calculator == nil {
		if s.calculator, err = valuation.New(); err != nil {
			return nil, err
		}
	}
	if s.distributor == nil {
		if s.distributor, err = points.New(); err != nil {
			return nil, err
		}
	}
	if s.decay == nil {
		if s.decay, err = decay.New(decay.WithLogger(s.logger.Named("decay"))); err != nil {
			return nil, err
		}
	}
	if s.rating == nil {
		if s.rating, err = rating.New(rating.WithLogger(s.logger.Named("rating"))); err != nil {
			return nil, err
		}
	}
	if s.aggregator == nil {
		if s.aggregator, err = ranking.New(); err != nil {
			return nil, err
		}
	}
	if s.ledger == nil {
		s.ledger = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore(ctx)
		s.ownsStore = true
	}

	s.logger.Info(ctx, "ranking service ready",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return s, nil
}

// Close releases the store when the service created it.
func (s *Service) Close() error {
	if !s.ownsStore {
		return nil
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Store returns the storage collaborator.
func (s *Service) Store() repository.Store {
	return s.store
}

// Stats is a point-in-time summary of the engine state.
type Stats struct {
	Players       int
	Tournaments   int
	Results       int
	RatingBatches int64
	RankedPlayers int
	RatedPlayers  int
	LastPublished time.Time
	Workers       int
	QueueCapacity int
}

// Stats returns engine statistics for monitoring.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		RatingBatches: s.ledger.Size(),
		Workers:       s.workerCount,
		QueueCapacity: s.queueSize,
	}

	if counter, ok := s.store.(interface{ Counts() (int, int, int) }); ok {
		st.Players, st.Tournaments, st.Results = counter.Counts()
	} else {
		players, err := s.store.ListPlayers(ctx)
		if err != nil {
			return Stats{}, err
		}
		tournaments, err := s.store.ListTournaments(ctx)
		if err != nil {
			return Stats{}, err
		}
		results, err := s.store.ListResults(ctx)
		if err != nil {
			return Stats{}, err
		}
		st.Players, st.Tournaments, st.Results = len(players), len(tournaments), len(results)
	}

	lists := s.store.Lists(ctx)
	st.RankedPlayers = len(lists.RankList)
	st.RatedPlayers = len(lists.RatingList)
	st.LastPublished = lists.PublishedAt

	metrics.UpdateRepositorySizes(st.Players, st.Tournaments, st.Results)
	return st, nil
}

// fail records validation failures and returns err unchanged.
func (s *Service) fail(ctx context.Context, err error) error {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		metrics.RecordValidationError(ve.Op)
		s.logger.Warn(ctx, "rejected input",
			logger.String("op", ve.Op),
			logger.String("field", ve.Field),
			logger.String("reason", ve.Reason),
		)
	}
	return err
}
