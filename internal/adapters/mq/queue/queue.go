// Package queue carries decay sweep partitions from the sweep coordinator to
// the worker pool through a bounded in-memory channel.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/pinrank/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Partition is one unit of sweep work: every result of a tournament,
// refreshed as of AsOf and saved together.
type Partition struct {
	RunID        string
	TournamentID string
	AsOf         time.Time
}

// Queue provides bounded enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds a partition without blocking. It returns false when the
	// queue is full or closed.
	Enqueue(ctx context.Context, p Partition) bool

	// EnqueueWait adds a partition, waiting for room until ctx is done.
	EnqueueWait(ctx context.Context, p Partition) error

	// Dequeue returns a channel that receives partitions until the queue is
	// closed and drained or ctx is done.
	Dequeue(ctx context.Context) <-chan Partition

	Len(ctx context.Context) int

	// Close stops accepting partitions. Queued partitions are still
	// delivered.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	partitions chan Partition
	capacity   int
	mu         sync.RWMutex
	closed     bool
}

// NewInMemoryQueue creates a queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.partitions = make(chan Partition, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue implements Queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, p Partition) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected("closed")
		return false
	}

	select {
	case q.partitions <- p:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.partitions))
		return true
	case <-ctx.Done():
		metrics.RecordQueueRejected("context_cancelled")
		return false
	default:
		metrics.RecordQueueRejected("queue_full")
		return false
	}
}

// EnqueueWait implements Queue.
func (q *InMemoryQueue) EnqueueWait(ctx context.Context, p Partition) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected("closed")
		return fmt.Errorf("partition %s: %w", p.TournamentID, ErrClosed)
	}

	select {
	case q.partitions <- p:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.partitions))
		return nil
	case <-ctx.Done():
		metrics.RecordQueueRejected("context_cancelled")
		return fmt.Errorf("partition %s: %w", p.TournamentID, ctx.Err())
	}
}

// Dequeue implements Queue.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Partition {
	out := make(chan Partition)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case p, ok := <-q.partitions:
				if !ok {
					return
				}
				metrics.UpdateQueueSize(len(q.partitions))
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len implements Queue.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.partitions)
	metrics.UpdateQueueSize(size)
	return size
}

// Close implements Queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.partitions)
	q.closed = true
	return nil
}

// IsClosed implements Queue.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
