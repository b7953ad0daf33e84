// Package worker runs decay sweep partitions pulled from the queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pinrank/internal/adapters/mq/queue"
	"github.com/okian/pinrank/pkg/logger"
	"github.com/okian/pinrank/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Processor loads, refreshes and saves one partition as a unit. It returns
// the number of results written.
type Processor interface {
	Process(ctx context.Context, p queue.Partition) (int, error)
}

// Outcome is the result of processing one partition.
type Outcome struct {
	Partition queue.Partition
	Results   int
	Err       error
	Latency   time.Duration
}

// Reporter receives every outcome. It must be safe for concurrent use.
type Reporter interface {
	Report(ctx context.Context, o Outcome)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, o Outcome)

// Report implements Reporter.
func (f ReporterFunc) Report(ctx context.Context, o Outcome) { f(ctx, o) }

// Queue defines how workers receive partitions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Partition
}

// Worker processes partitions until its queue is drained.
type Worker interface {
	// Run processes partitions until the queue is closed and drained, ctx
	// is done, or Shutdown is called. A partition is never started after
	// ctx is done.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current partition.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	processor Processor
	reporter  Reporter
	name      string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(q Queue, processor Processor, reporter Reporter, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		processor: processor,
		reporter:  reporter,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run implements Worker.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	partitions := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case p, ok := <-partitions:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			w.process(ctx, p)
		}
	}
}

// Shutdown implements Worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, p queue.Partition) {
	start := time.Now()
	n, err := w.processor.Process(ctx, p)
	latency := time.Since(start)
	metrics.RecordPartitionProcessed(latency)

	if err != nil {
		w.logger.Error(ctx, "partition failed",
			logger.String("run", p.RunID),
			logger.String("tournament", p.TournamentID),
			logger.Error(err),
		)
	}
	if w.reporter != nil {
		w.reporter.Report(ctx, Outcome{Partition: p, Results: n, Err: err, Latency: latency})
	}
}

// Pool runs a fixed set of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	active  atomic.Int64
	wg      sync.WaitGroup

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. A non-positive count uses
// one worker per CPU.
func NewPool(workerCount int, q Queue, processor Processor, reporter Reporter) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(q, processor, reporter, WithName("worker-"+strconv.Itoa(i)))
	}
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		metrics.UpdateWorkerActive(int(p.active.Add(1)))
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			defer func() { metrics.UpdateWorkerActive(int(p.active.Add(-1))) }()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Shutdown closes the queue and stops every worker after its current
// partition.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
