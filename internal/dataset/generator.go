package dataset

import (
	"cmp"
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/okian/pinrank/internal/domain/model"
	"github.com/okian/pinrank/pkg/logger"
)

// Constants for the generated field strength.
const (
	strengthMean      = 1500.0
	strengthSpread    = 200.0
	performanceSpread = 150.0
	tgpSteps          = 11 // 0.50, 0.55, ... 1.00
)

// strengthStream is the rng stream reserved for player strengths.
const strengthStream = ^uint64(0)

var namespace = uuid.MustParse("6f1c7a5e-3b0d-4c8e-9a51-2d7f4e6b8c90")

// boosterWeights makes unboosted events the common case.
var boosterWeights = []struct {
	booster model.Booster
	weight  int
}{
	{model.BoosterNone, 60},
	{model.BoosterCertified, 20},
	{model.BoosterCertifiedPlus, 10},
	{model.BoosterChampionshipSeries, 7},
	{model.BoosterMajor, 3},
}

// GeneratorConfig shapes a synthetic season. Seed drives every random
// choice; a zero seed gives random player handles.
type GeneratorConfig struct {
	Players     int
	Tournaments int
	MinField    int
	MaxField    int
	Start       time.Time
	SpanDays    int
	OptOutRate  float64
	GroupSize   int
	Seed        uint64
	Workers     int
}

// DefaultGeneratorConfig returns a small season spread over two years.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Players:     200,
		Tournaments: 120,
		MinField:    8,
		MaxField:    48,
		Start:       time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC),
		SpanDays:    730,
		OptOutRate:  0.02,
		GroupSize:   4,
		Seed:        1,
		Workers:     4,
	}
}

func (c GeneratorConfig) validate() error {
	switch {
	case c.Players < 2:
		return fmt.Errorf("%w: at least two players are needed", ErrInvalid)
	case c.Tournaments < 1:
		return fmt.Errorf("%w: at least one tournament is needed", ErrInvalid)
	case c.MinField < 1 || c.MaxField < c.MinField:
		return fmt.Errorf("%w: field size range %d..%d", ErrInvalid, c.MinField, c.MaxField)
	case c.SpanDays < 0:
		return fmt.Errorf("%w: negative span", ErrInvalid)
	case c.OptOutRate < 0 || c.OptOutRate >= 1:
		return fmt.Errorf("%w: opt-out rate %v outside [0,1)", ErrInvalid, c.OptOutRate)
	case c.GroupSize < 2:
		return fmt.Errorf("%w: games need at least two players", ErrInvalid)
	}
	return nil
}

// Generate builds a synthetic season. Every player gets a generated handle
// and a hidden strength, and finishes each event by strength plus noise, so
// stronger players tend to rank higher. The same config always yields the
// same season.
func Generate(ctx context.Context, cfg GeneratorConfig) (Season, error) {
	if err := cfg.validate(); err != nil {
		return Season{}, err
	}
	logger.Get().Info(ctx, "generating season",
		logger.Int("players", cfg.Players),
		logger.Int("tournaments", cfg.Tournaments),
	)

	players := make([]string, cfg.Players)
	strength := make([]float64, cfg.Players)
	faker := gofakeit.New(cfg.Seed)
	r := rand.New(rand.NewPCG(cfg.Seed, strengthStream))
	for i := range players {
		// The index keeps handles unique.
		players[i] = strings.ToLower(faker.Username()) + "-" + strconv.Itoa(i)
		strength[i] = strengthMean + r.NormFloat64()*strengthSpread
	}

	type tournamentResult struct {
		index      int
		tournament Tournament
	}

	workerCount := min(max(cfg.Workers, 1), cfg.Tournaments)
	perWorker := cfg.Tournaments / workerCount
	resultChan := make(chan tournamentResult, cfg.Tournaments)

	for worker := 0; worker < workerCount; worker++ {
		start := worker * perWorker
		end := start + perWorker
		if worker == workerCount-1 {
			end = cfg.Tournaments // Last worker gets the remainder
		}
		go func(start, end int) {
			for i := start; i < end; i++ {
				if ctx.Err() != nil {
					return
				}
				resultChan <- tournamentResult{index: i, tournament: generateTournament(cfg, i, players, strength)}
			}
		}(start, end)
	}

	season := Season{Tournaments: make([]Tournament, cfg.Tournaments)}
	for i := 0; i < cfg.Tournaments; i++ {
		select {
		case <-ctx.Done():
			return Season{}, fmt.Errorf("season generation cancelled: %w", ctx.Err())
		case res := <-resultChan:
			season.Tournaments[res.index] = res.tournament
		}
	}

	logger.Get().Info(ctx, "generated season", logger.Int("tournaments", len(season.Tournaments)))
	return season, nil
}

func generateTournament(cfg GeneratorConfig, index int, players []string, strength []float64) Tournament {
	r := rand.New(rand.NewPCG(cfg.Seed, uint64(index)))

	field := min(cfg.MinField+r.IntN(cfg.MaxField-cfg.MinField+1), len(players))
	entrants := r.Perm(len(players))[:field]

	performance := make(map[int]float64, field)
	for _, p := range entrants {
		performance[p] = strength[p] + r.NormFloat64()*performanceSpread
	}
	slices.SortFunc(entrants, func(a, b int) int { return cmp.Compare(performance[b], performance[a]) })

	day := 0
	if cfg.Tournaments > 1 {
		day = cfg.SpanDays * index / (cfg.Tournaments - 1)
	}

	t := Tournament{
		ID:        tournamentID(cfg.Seed, index),
		Date:      cfg.Start.AddDate(0, 0, day).Format(DateLayout),
		Booster:   string(pickBooster(r)),
		TGP:       0.5 + 0.05*float64(r.IntN(tgpSteps)),
		Standings: make([]Standing, field),
	}
	t.TGP = model.RoundPoints(t.TGP)

	var rated []int
	for i, p := range entrants {
		optedOut := r.Float64() < cfg.OptOutRate
		t.Standings[i] = Standing{Player: players[p], Position: i + 1, OptedOut: optedOut}
		if !optedOut {
			rated = append(rated, p)
		}
	}

	// Group games by finishing order; each game is replayed with fresh noise.
	for start := 0; start+1 < len(rated); start += cfg.GroupSize {
		group := slices.Clone(rated[start:min(start+cfg.GroupSize, len(rated))])
		if len(group) < 2 {
			break
		}
		score := make(map[int]float64, len(group))
		for _, p := range group {
			score[p] = strength[p] + r.NormFloat64()*performanceSpread
		}
		slices.SortFunc(group, func(a, b int) int { return cmp.Compare(score[b], score[a]) })

		game := make([]GameEntry, len(group))
		for i, p := range group {
			game[i] = GameEntry{Player: players[p], Position: i + 1}
		}
		t.Games = append(t.Games, game)
	}
	return t
}

func pickBooster(r *rand.Rand) model.Booster {
	total := 0
	for _, w := range boosterWeights {
		total += w.weight
	}
	n := r.IntN(total)
	for _, w := range boosterWeights {
		if n < w.weight {
			return w.booster
		}
		n -= w.weight
	}
	return model.BoosterNone
}

func tournamentID(seed uint64, index int) string {
	name := "tournament-" + strconv.FormatUint(seed, 10) + "-" + strconv.Itoa(index)
	return uuid.NewSHA1(namespace, []byte(name)).String()
}
