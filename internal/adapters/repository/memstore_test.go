package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/pinrank/internal/domain/model"
	"github.com/okian/pinrank/internal/domain/types"
)

var played = time.Date(2025, 2, 1, 19, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(context.Background(), WithMetricsUpdateInterval(10*time.Millisecond))
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return s
}

func results(tournamentID string, players ...string) []model.Result {
	out := make([]model.Result, len(players))
	for i, p := range players {
		out[i] = model.Result{PlayerID: p, TournamentID: tournamentID, TournamentDate: played, Position: i + 1, TotalPoints: float64(10 - i)}
	}
	return out
}

func TestMemoryStore_Players(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.GetPlayer(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	rank := 3
	if err := s.SavePlayers(ctx, []model.Player{
		{ID: "b", Rating: 1600, Ranking: &rank},
		{ID: "a", Rating: 1500},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rank = 99
	got, err := s.GetPlayer(ctx, "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Ranking == nil || *got.Ranking != 3 {
		t.Fatalf("stored ranking aliased caller memory: %v", got.Ranking)
	}

	*got.Ranking = 1
	again, _ := s.GetPlayer(ctx, "b")
	if *again.Ranking != 3 {
		t.Fatal("returned player aliases stored memory")
	}

	list, err := s.ListPlayers(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Fatalf("unexpected list order: %+v", list)
	}

	some, _ := s.GetPlayers(ctx, []string{"b", "missing", "a"})
	if len(some) != 2 || some[0].ID != "b" || some[1].ID != "a" {
		t.Fatalf("GetPlayers returned %+v", some)
	}

	if err := s.SavePlayers(ctx, []model.Player{{ID: "c"}, {ID: ""}}); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
	if _, err := s.GetPlayer(ctx, "c"); !errors.Is(err, ErrNotFound) {
		t.Fatal("a rejected batch must not be partially written")
	}
}

func TestMemoryStore_Tournaments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, tr := range []model.Tournament{
		{ID: "late", Date: played.AddDate(0, 1, 0)},
		{ID: "b-early", Date: played},
		{ID: "a-early", Date: played},
	} {
		if err := s.SaveTournament(ctx, tr); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	list, _ := s.ListTournaments(ctx)
	want := []string{"a-early", "b-early", "late"}
	for i, id := range want {
		if list[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, list[i].ID, id)
		}
	}

	if err := s.SaveTournament(ctx, model.Tournament{ID: "late", Date: played, FirstPlaceValue: 42}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := s.GetTournament(ctx, "late")
	if got.FirstPlaceValue != 42 {
		t.Fatalf("tournament not replaced: %+v", got)
	}
	if err := s.SaveTournament(ctx, model.Tournament{}); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestMemoryStore_ReplaceResults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.ReplaceResults(ctx, "t1", results("t1", "a", "b", "c")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.ReplaceResults(ctx, "t1", results("t1", "c", "a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := s.ResultsByTournament(ctx, "t1")
	if len(got) != 2 || got[0].PlayerID != "c" || got[1].PlayerID != "a" {
		t.Fatalf("results not replaced wholesale: %+v", got)
	}

	if err := s.ReplaceResults(ctx, "t1", results("t2", "x")); !errors.Is(err, ErrPartitionMismatch) {
		t.Fatalf("expected ErrPartitionMismatch, got %v", err)
	}

	if err := s.ReplaceResults(ctx, "t0", results("t0", "z")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids, _ := s.TournamentIDs(ctx)
	if len(ids) != 2 || ids[0] != "t0" || ids[1] != "t1" {
		t.Fatalf("unexpected partitions %v", ids)
	}
	all, _ := s.ListResults(ctx)
	if len(all) != 3 {
		t.Fatalf("expected 3 results, got %d", len(all))
	}

	if err := s.ReplaceResults(ctx, "t0", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if players, tournaments, res := s.Counts(); players != 0 || tournaments != 0 || res != 2 {
		t.Fatalf("unexpected counts %d/%d/%d", players, tournaments, res)
	}
}

func TestMemoryStore_SaveDecay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.ReplaceResults(ctx, "t1", results("t1", "a", "b")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decayed := results("t1", "a", "b")
	for i := range decayed {
		decayed[i].AgeInDays = 400
		decayed[i].DecayMultiplier = 0.75
		decayed[i].DecayedPoints = decayed[i].TotalPoints * 0.75
		decayed[i].Position = 9 // must not be written
	}
	if err := s.SaveDecay(ctx, "t1", decayed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := s.ResultsByTournament(ctx, "t1")
	if got[0].DecayedPoints != 7.5 || got[0].AgeInDays != 400 || got[0].Position != 1 {
		t.Fatalf("unexpected result after decay: %+v", got[0])
	}

	bad := results("t1", "a", "stranger")
	bad[0].DecayedPoints = 1
	if err := s.SaveDecay(ctx, "t1", bad); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	got, _ = s.ResultsByTournament(ctx, "t1")
	if got[0].DecayedPoints != 7.5 {
		t.Fatal("a failed partition must not be partially written")
	}

	if err := s.SaveDecay(ctx, "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_SaveDecayRejectsReplacedPartition(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.ReplaceResults(ctx, "t1", results("t1", "a", "b")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	read, _ := s.ResultsByTournament(ctx, "t1")

	// The tournament is re-finalized at half the value before decay is saved.
	replaced := results("t1", "a", "b")
	for i := range replaced {
		replaced[i].TotalPoints /= 2
		replaced[i].DecayMultiplier = 1
		replaced[i].DecayedPoints = replaced[i].TotalPoints
	}
	if err := s.ReplaceResults(ctx, "t1", replaced); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decayed := make([]model.Result, len(read))
	for i, r := range read {
		r.DecayMultiplier = 0.75
		r.DecayedPoints = r.TotalPoints * 0.75
		decayed[i] = r
	}
	if err := s.SaveDecay(ctx, "t1", decayed); !errors.Is(err, ErrStaleResults) {
		t.Fatalf("expected ErrStaleResults, got %v", err)
	}
	got, _ := s.ResultsByTournament(ctx, "t1")
	for _, r := range got {
		if r.DecayedPoints > r.TotalPoints || r.DecayMultiplier != 1 {
			t.Fatalf("stale decay written onto %+v", r)
		}
	}

	// A field that grew since the read is stale too.
	if err := s.ReplaceResults(ctx, "t1", results("t1", "a", "b", "c")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SaveDecay(ctx, "t1", results("t1", "a", "b")); !errors.Is(err, ErrStaleResults) {
		t.Fatalf("expected ErrStaleResults, got %v", err)
	}

	moved := results("t1", "a", "b", "c")
	moved[0].TournamentDate = played.AddDate(0, 0, 1)
	if err := s.SaveDecay(ctx, "t1", moved); !errors.Is(err, ErrStaleResults) {
		t.Fatalf("expected ErrStaleResults, got %v", err)
	}
}

func TestMemoryStore_PublishLists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if snap := s.Lists(ctx); len(snap.RankList) != 0 || !snap.PublishedAt.IsZero() {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}

	rank := []types.RankEntry{{Rank: 1, PlayerID: "a", Points: 100}}
	rating := []types.RatingEntry{{Position: 1, PlayerID: "a", Rating: 1800}}
	if err := s.PublishLists(ctx, rank, rating); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rank[0].PlayerID = "mutated"

	snap := s.Lists(ctx)
	if snap.RankList[0].PlayerID != "a" || snap.RatingList[0].Rating != 1800 || snap.PublishedAt.IsZero() {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestMemoryStore_Concurrency(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("t-%d-%d", g, i)
				if err := s.ReplaceResults(ctx, id, results(id, "a", "b")); err != nil {
					t.Errorf("replace: %v", err)
					return
				}
				if _, err := s.ListResults(ctx); err != nil {
					t.Errorf("list: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	if _, _, n := s.Counts(); n != 8*50*2 {
		t.Fatalf("expected %d results, got %d", 8*50*2, n)
	}
}

func TestMemoryStore_CloseIsIdempotent(t *testing.T) {
	s := NewMemoryStore(context.Background())
	if err := s.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
