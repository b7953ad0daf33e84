package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pinrank/internal/domain/model"
	"github.com/okian/pinrank/internal/domain/types"
	"github.com/okian/pinrank/pkg/metrics"
)

// MemoryStore is an in-memory Store. Results are grouped by tournament so
// per-tournament writes are a single map swap under the lock.
type MemoryStore struct {
	mu          sync.RWMutex
	players     map[string]model.Player
	tournaments map[string]model.Tournament
	results     map[string]map[string]model.Result // tournament -> player -> result

	// published lists, read without the lock
	snapshot atomic.Pointer[Snapshot]

	metricsUpdateInterval time.Duration
	wg                    sync.WaitGroup
	stopChan              chan struct{}
	closeOnce             sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty store and starts its metrics updater.
// The updater stops when ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		players:               make(map[string]model.Player),
		tournaments:           make(map[string]model.Tournament),
		results:               make(map[string]map[string]model.Result),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot.Store(&Snapshot{})
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background metrics updater.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func observe(op string, start time.Time) {
	metrics.RecordRepositoryLatency(op, time.Since(start))
}

// GetPlayer implements PlayerStore.
func (s *MemoryStore) GetPlayer(_ context.Context, id string) (model.Player, error) {
	defer observe("get_player", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return model.Player{}, fmt.Errorf("player %s: %w", id, ErrNotFound)
	}
	return clonePlayer(p), nil
}

// GetPlayers implements PlayerStore.
func (s *MemoryStore) GetPlayers(_ context.Context, ids []string) ([]model.Player, error) {
	defer observe("get_players", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Player, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.players[id]; ok {
			out = append(out, clonePlayer(p))
		}
	}
	return out, nil
}

// ListPlayers implements PlayerStore. Players are sorted by id.
func (s *MemoryStore) ListPlayers(_ context.Context) ([]model.Player, error) {
	defer observe("list_players", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, clonePlayer(p))
	}
	slices.SortFunc(out, func(a, b model.Player) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// SavePlayers implements PlayerStore.
func (s *MemoryStore) SavePlayers(_ context.Context, players []model.Player) error {
	defer observe("save_players", time.Now())
	for _, p := range players {
		if p.ID == "" {
			return fmt.Errorf("player without id: %w", ErrInvalidRecord)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range players {
		s.players[p.ID] = clonePlayer(p)
	}
	return nil
}

// GetTournament implements TournamentStore.
func (s *MemoryStore) GetTournament(_ context.Context, id string) (model.Tournament, error) {
	defer observe("get_tournament", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tournaments[id]
	if !ok {
		return model.Tournament{}, fmt.Errorf("tournament %s: %w", id, ErrNotFound)
	}
	return t, nil
}

// ListTournaments implements TournamentStore. Tournaments are sorted by
// date, then id.
func (s *MemoryStore) ListTournaments(_ context.Context) ([]model.Tournament, error) {
	defer observe("list_tournaments", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Tournament, 0, len(s.tournaments))
	for _, t := range s.tournaments {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b model.Tournament) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// SaveTournament implements TournamentStore.
func (s *MemoryStore) SaveTournament(_ context.Context, t model.Tournament) error {
	defer observe("save_tournament", time.Now())
	if t.ID == "" {
		return fmt.Errorf("tournament without id: %w", ErrInvalidRecord)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tournaments[t.ID] = t
	return nil
}

// ReplaceResults implements ResultStore.
func (s *MemoryStore) ReplaceResults(_ context.Context, tournamentID string, results []model.Result) error {
	defer observe("replace_results", time.Now())
	partition := make(map[string]model.Result, len(results))
	for _, r := range results {
		if r.TournamentID != tournamentID {
			return fmt.Errorf("result of %s for tournament %s: %w", r.PlayerID, r.TournamentID, ErrPartitionMismatch)
		}
		if r.PlayerID == "" {
			return fmt.Errorf("result without player: %w", ErrInvalidRecord)
		}
		partition[r.PlayerID] = r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(partition) == 0 {
		delete(s.results, tournamentID)
		return nil
	}
	s.results[tournamentID] = partition
	return nil
}

// ResultsByTournament implements ResultStore. Results are sorted by
// position, then player id.
func (s *MemoryStore) ResultsByTournament(_ context.Context, tournamentID string) ([]model.Result, error) {
	defer observe("results_by_tournament", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	partition, ok := s.results[tournamentID]
	if !ok {
		return nil, nil
	}
	return sortedResults(partition), nil
}

// ListResults implements ResultStore.
func (s *MemoryStore) ListResults(_ context.Context) ([]model.Result, error) {
	defer observe("list_results", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Result
	for _, id := range s.tournamentIDsLocked() {
		out = append(out, sortedResults(s.results[id])...)
	}
	return out, nil
}

// TournamentIDs implements ResultStore.
func (s *MemoryStore) TournamentIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tournamentIDsLocked(), nil
}

// SaveDecay implements ResultStore. Only the decay fields are written, and
// only when results still match the stored partition row for row.
func (s *MemoryStore) SaveDecay(_ context.Context, tournamentID string, results []model.Result) error {
	defer observe("save_decay", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	partition, ok := s.results[tournamentID]
	if !ok {
		return fmt.Errorf("results of tournament %s: %w", tournamentID, ErrNotFound)
	}
	for _, r := range results {
		if r.TournamentID != tournamentID {
			return fmt.Errorf("result of %s for tournament %s: %w", r.PlayerID, r.TournamentID, ErrPartitionMismatch)
		}
		stored, ok := partition[r.PlayerID]
		if !ok {
			return fmt.Errorf("result of %s in %s: %w", r.PlayerID, tournamentID, ErrNotFound)
		}
		if stored.TotalPoints != r.TotalPoints || !stored.TournamentDate.Equal(r.TournamentDate) {
			return fmt.Errorf("result of %s in %s: %w", r.PlayerID, tournamentID, ErrStaleResults)
		}
	}
	if len(results) != len(partition) {
		return fmt.Errorf("tournament %s holds %d results, got %d: %w", tournamentID, len(partition), len(results), ErrStaleResults)
	}

	for _, r := range results {
		stored := partition[r.PlayerID]
		stored.AgeInDays = r.AgeInDays
		stored.DecayMultiplier = r.DecayMultiplier
		stored.DecayedPoints = r.DecayedPoints
		partition[r.PlayerID] = stored
	}
	return nil
}

// PublishLists implements ListPublisher.
func (s *MemoryStore) PublishLists(_ context.Context, rank []types.RankEntry, rating []types.RatingEntry) error {
	s.snapshot.Store(&Snapshot{
		RankList:    slices.Clone(rank),
		RatingList:  slices.Clone(rating),
		PublishedAt: time.Now(),
	})
	return nil
}

// Lists implements ListPublisher.
func (s *MemoryStore) Lists(_ context.Context) Snapshot {
	return *s.snapshot.Load()
}

// Counts returns the number of players, tournaments and results held.
func (s *MemoryStore) Counts() (players, tournaments, results int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.results {
		results += len(p)
	}
	return len(s.players), len(s.tournaments), results
}

func (s *MemoryStore) tournamentIDsLocked() []string {
	ids := make([]string, 0, len(s.results))
	for id := range s.results {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// startMetricsUpdater publishes store sizes until ctx is done or the store
// is closed.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateRepositorySizes(s.Counts())
			}
		}
	}()
}

func sortedResults(partition map[string]model.Result) []model.Result {
	out := make([]model.Result, 0, len(partition))
	for _, r := range partition {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b model.Result) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.PlayerID, b.PlayerID)
	})
	return out
}

func clonePlayer(p model.Player) model.Player {
	if p.Ranking != nil {
		r := *p.Ranking
		p.Ranking = &r
	}
	return p
}
