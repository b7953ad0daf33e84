package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

var asOf = time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)

func partition(id string) Partition {
	return Partition{RunID: "run-1", TournamentID: id, AsOf: asOf}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if !q.Enqueue(ctx, partition("t1")) {
		t.Fatal("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	ch := q.Dequeue(ctx)
	got := <-ch
	if got.TournamentID != "t1" || !got.AsOf.Equal(asOf) {
		t.Errorf("unexpected partition %+v", got)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, partition("t1")) || !q.Enqueue(ctx, partition("t2")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, partition("t3")) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_EnqueueWait(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()

	if err := q.EnqueueWait(ctx, partition("t1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancelled, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := q.EnqueueWait(cancelled, partition("t2")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error on a full queue, got %v", err)
	}

	consumer, stop := context.WithCancel(ctx)
	defer stop()
	ch := q.Dequeue(consumer)
	done := make(chan error, 1)
	go func() { done <- q.EnqueueWait(ctx, partition("t3")) }()

	first := <-ch
	second := <-ch
	if first.TournamentID != "t1" || second.TournamentID != "t3" {
		t.Fatalf("unexpected order %s, %s", first.TournamentID, second.TournamentID)
	}
	if err := <-done; err != nil {
		t.Fatalf("waiting enqueue failed: %v", err)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(16))
	ctx := context.Background()
	const producers = 8
	const perProducer = 50

	var consumed sync.Map
	var consumers sync.WaitGroup
	for i := 0; i < 4; i++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for p := range q.Dequeue(ctx) {
				consumed.Store(p.TournamentID, true)
			}
		}()
	}

	var producersWG sync.WaitGroup
	for i := 0; i < producers; i++ {
		producersWG.Add(1)
		go func(id int) {
			defer producersWG.Done()
			for j := 0; j < perProducer; j++ {
				if err := q.EnqueueWait(ctx, partition(fmt.Sprintf("t-%d-%d", id, j))); err != nil {
					t.Errorf("enqueue: %v", err)
					return
				}
			}
		}(i)
	}
	producersWG.Wait()
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	consumers.Wait()

	count := 0
	consumed.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count != producers*perProducer {
		t.Errorf("expected %d partitions, got %d", producers*perProducer, count)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, partition("t1")) || !q.Enqueue(ctx, partition("t2")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Enqueue(ctx, partition("t3")) {
		t.Error("expected enqueue to fail after closing")
	}
	if err := q.EnqueueWait(ctx, partition("t3")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	var drained []string
	timeout := time.After(time.Second)
	ch := q.Dequeue(ctx)
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				if len(drained) != 2 {
					t.Errorf("expected queued partitions to drain, got %v", drained)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			drained = append(drained, p.TournamentID)
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
}
