// Package repository defines the storage collaborator of the ranking engine
// and an in-memory implementation of it.
package repository

import (
	"context"
	"time"

	"github.com/okian/pinrank/internal/domain/model"
	"github.com/okian/pinrank/internal/domain/types"
)

// PlayerStore persists player rating and ranking state.
type PlayerStore interface {
	// GetPlayer returns ErrNotFound for unknown ids.
	GetPlayer(ctx context.Context, id string) (model.Player, error)
	// GetPlayers returns the known players among ids, in ids order.
	GetPlayers(ctx context.Context, ids []string) ([]model.Player, error)
	ListPlayers(ctx context.Context) ([]model.Player, error)
	// SavePlayers upserts all players as one unit.
	SavePlayers(ctx context.Context, players []model.Player) error
}

// TournamentStore persists tournaments and their derived value.
type TournamentStore interface {
	GetTournament(ctx context.Context, id string) (model.Tournament, error)
	ListTournaments(ctx context.Context) ([]model.Tournament, error)
	SaveTournament(ctx context.Context, t model.Tournament) error
}

// ResultStore persists results. A tournament's results form the unit of
// atomic writes.
type ResultStore interface {
	// ReplaceResults swaps every result of a tournament for results.
	ReplaceResults(ctx context.Context, tournamentID string, results []model.Result) error
	ResultsByTournament(ctx context.Context, tournamentID string) ([]model.Result, error)
	ListResults(ctx context.Context) ([]model.Result, error)
	// TournamentIDs lists the tournaments that have results, sorted.
	TournamentIDs(ctx context.Context) ([]string, error)
	// SaveDecay writes the decay fields of a tournament's results. Either
	// every result is written or none is. It fails with ErrStaleResults when
	// the partition was replaced after results were read.
	SaveDecay(ctx context.Context, tournamentID string, results []model.Result) error
}

// ListPublisher holds the last published rank and rating lists.
type ListPublisher interface {
	PublishLists(ctx context.Context, rank []types.RankEntry, rating []types.RatingEntry) error
	Lists(ctx context.Context) Snapshot
}

// Store is the full storage collaborator.
type Store interface {
	PlayerStore
	TournamentStore
	ResultStore
	ListPublisher
}

// Snapshot is an immutable published view of both lists.
type Snapshot struct {
	RankList    []types.RankEntry
	RatingList  []types.RatingEntry
	PublishedAt time.Time
}
