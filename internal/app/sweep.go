package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pinrank/internal/adapters/mq/queue"
	"github.com/okian/pinrank/internal/adapters/mq/worker"
	repository "github.com/okian/pinrank/internal/adapters/repository"
	"github.com/okian/pinrank/internal/domain/decay"
	"github.com/okian/pinrank/pkg/logger"
	"github.com/okian/pinrank/pkg/metrics"
)

// PartitionFailure names a tournament whose results could not be refreshed.
// None of its results were written.
type PartitionFailure struct {
	TournamentID string
	Err          error
}

// SweepReport summarizes one decay sweep.
type SweepReport struct {
	RunID      string
	AsOf       time.Time
	Partitions int
	// Swept counts the results written by successful partitions.
	Swept     int
	Succeeded int
	Failed    []PartitionFailure
	// Skipped lists partitions never started because the sweep was cancelled.
	Skipped   []string
	Cancelled bool
	Duration  time.Duration
}

// SweepDecay refreshes the decay fields of every stored result as of asOf.
// A zero asOf means now. Each tournament is one partition, loaded, refreshed
// and saved as a unit by the worker pool. Failed partitions are reported and
// left untouched; the sweep does not retry them. When ctx is cancelled no
// new partition starts and the partial report is returned with ctx's error.
func (s *Service) SweepDecay(ctx context.Context, asOf time.Time) (SweepReport, error) {
	start := time.Now()
	if asOf.IsZero() {
		asOf = s.now()
	}

	ids, err := s.store.TournamentIDs(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("list partitions: %w", err)
	}

	report := SweepReport{RunID: uuid.NewString(), AsOf: asOf, Partitions: len(ids)}
	log := s.logger.With(logger.String("run", report.RunID))
	log.Info(ctx, "decay sweep started", logger.Time("asOf", asOf), logger.Int("partitions", len(ids)))

	var mu sync.Mutex
	reported := make(map[string]struct{}, len(ids))
	reporter := worker.ReporterFunc(func(_ context.Context, o worker.Outcome) {
		mu.Lock()
		defer mu.Unlock()

		reported[o.Partition.TournamentID] = struct{}{}
		if o.Err != nil {
			report.Failed = append(report.Failed, PartitionFailure{TournamentID: o.Partition.TournamentID, Err: o.Err})
			metrics.RecordDecayPartitionFailure()
			return
		}
		report.Succeeded++
		report.Swept += o.Results
		metrics.RecordDecaySwept(o.Results)
	})

	q := queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	processor := &sweepProcessor{store: s.store, decay: s.decay, partitions: s.partitions}
	pool := worker.NewPool(s.workerCount, q, processor, reporter)
	pool.Start(ctx)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		p := queue.Partition{RunID: report.RunID, TournamentID: id, AsOf: asOf}
		if q.Enqueue(ctx, p) {
			continue
		}
		// Full: wait for the workers to make room.
		if err := q.EnqueueWait(ctx, p); err != nil {
			break
		}
	}

	if ctx.Err() != nil {
		log.Warn(ctx, "decay sweep cancelled", logger.Int("pending", q.Len(ctx)))
		if err := pool.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
	} else {
		_ = q.Close()
	}
	pool.Wait()

	for _, id := range ids {
		if _, ok := reported[id]; !ok {
			report.Skipped = append(report.Skipped, id)
		}
	}
	slices.SortFunc(report.Failed, func(a, b PartitionFailure) int {
		return cmp.Compare(a.TournamentID, b.TournamentID)
	})
	report.Cancelled = ctx.Err() != nil
	report.Duration = time.Since(start)
	metrics.RecordDecaySweep(report.Duration, s.now())

	log.Info(ctx, "decay sweep finished",
		logger.Int("succeeded", report.Succeeded),
		logger.Int("failed", len(report.Failed)),
		logger.Int("skipped", len(report.Skipped)),
		logger.Int("results", report.Swept),
		logger.Duration("duration", report.Duration),
	)
	if report.Cancelled {
		return report, fmt.Errorf("decay sweep %s: %w", report.RunID, ctx.Err())
	}
	return report, nil
}

// sweepProcessor refreshes one tournament's results. It holds the
// tournament's lock so a concurrent finalization cannot replace the
// partition between the read and the write.
type sweepProcessor struct {
	store      repository.ResultStore
	decay      *decay.Engine
	partitions *keyedLocks
}

func (p *sweepProcessor) Process(ctx context.Context, part queue.Partition) (int, error) {
	unlock := p.partitions.lock([]string{part.TournamentID})
	defer unlock()

	results, err := p.store.ResultsByTournament(ctx, part.TournamentID)
	if err != nil {
		return 0, fmt.Errorf("load partition %s: %w", part.TournamentID, err)
	}
	refreshed := p.decay.ApplyAll(ctx, results, part.AsOf)
	if err := p.store.SaveDecay(ctx, part.TournamentID, refreshed); err != nil {
		return 0, fmt.Errorf("save partition %s: %w", part.TournamentID, err)
	}
	return len(refreshed), nil
}
