package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/okian/pinrank/internal/dataset"
	"github.com/okian/pinrank/pkg/logger"
)

const defaultTimeout = 2 * time.Minute

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		logger.Get().Error(ctx, "gen-season failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	defaults := dataset.DefaultGeneratorConfig()
	return &cli.App{
		Name:  "gen-season",
		Usage: "write a synthetic season for the pinrank batch command",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "players", Value: defaults.Players, Usage: "number of players in the pool"},
			&cli.IntFlag{Name: "tournaments", Value: defaults.Tournaments, Usage: "number of tournaments to generate"},
			&cli.IntFlag{Name: "min-field", Value: defaults.MinField, Usage: "smallest tournament field"},
			&cli.IntFlag{Name: "max-field", Value: defaults.MaxField, Usage: "largest tournament field"},
			&cli.StringFlag{Name: "start", Value: defaults.Start.Format(dataset.DateLayout), Usage: "date of the first tournament"},
			&cli.IntFlag{Name: "span", Value: defaults.SpanDays, Usage: "days between the first and last tournament"},
			&cli.Float64Flag{Name: "opt-out", Value: defaults.OptOutRate, Usage: "probability an entrant opts out of ratings"},
			&cli.IntFlag{Name: "group-size", Value: defaults.GroupSize, Usage: "players per group game"},
			&cli.Uint64Flag{Name: "seed", Value: defaults.Seed, Usage: "random seed"},
			&cli.IntFlag{Name: "workers", Value: runtime.NumCPU(), Usage: "number of concurrent generators"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output file, .toml for TOML (default: season_TIMESTAMP.yaml)"},
		},
		Action: generate,
	}
}

func generate(c *cli.Context) error {
	start, err := time.Parse(dataset.DateLayout, c.String("start"))
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}

	season, err := dataset.Generate(c.Context, dataset.GeneratorConfig{
		Players:     c.Int("players"),
		Tournaments: c.Int("tournaments"),
		MinField:    c.Int("min-field"),
		MaxField:    c.Int("max-field"),
		Start:       start,
		SpanDays:    c.Int("span"),
		OptOutRate:  c.Float64("opt-out"),
		GroupSize:   c.Int("group-size"),
		Seed:        c.Uint64("seed"),
		Workers:     c.Int("workers"),
	})
	if err != nil {
		return err
	}

	path := c.String("output")
	if path == "" {
		path = fmt.Sprintf("season_%s.yaml", time.Now().Format("20060102_150405"))
	}
	if err := dataset.Write(path, season); err != nil {
		return err
	}
	logger.Get().Info(c.Context, "season written",
		logger.String("path", path),
		logger.Int("tournaments", len(season.Tournaments)),
	)
	return nil
}
