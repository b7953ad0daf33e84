package service

import (
	"sync"
	"testing"
)

func TestKeyedLocks(t *testing.T) {
	locks := newKeyedLocks()
	counters := map[string]int{"a": 0, "b": 0, "c": 0}
	sets := [][]string{{"a", "b"}, {"b", "c"}, {"c", "a"}, {"a", "a", "c"}}

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		ids := sets[i%len(sets)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock(ids)
			defer unlock()
			seen := make(map[string]bool)
			for _, id := range ids {
				if !seen[id] {
					counters[id]++
					seen[id] = true
				}
			}
		}()
	}
	wg.Wait()

	if got := counters["a"] + counters["b"] + counters["c"]; got != 400 {
		t.Fatalf("expected 400 increments, got %d", got)
	}
	if n := locks.size(); n != 0 {
		t.Fatalf("expected every lock to be released, %d remain", n)
	}
}
