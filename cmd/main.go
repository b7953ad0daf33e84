package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	service "github.com/okian/pinrank/internal/app"
	"github.com/okian/pinrank/internal/config"
	"github.com/okian/pinrank/internal/dataset"
	"github.com/okian/pinrank/pkg/logger"
	"github.com/okian/pinrank/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		// Logger isn't available yet.
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "pinrank failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logger.Get()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	if cfg.DatasetPath == "" {
		return errors.New("dataset_path is not set (PINRANK_DATASET_PATH)")
	}

	season, err := dataset.Load(cfg.DatasetPath)
	if err != nil {
		return err
	}
	fins, err := season.Finalizations()
	if err != nil {
		return err
	}

	svc, err := service.NewFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	defer func() { _ = svc.Close() }()

	var srv *http.Server
	if cfg.MetricsAddr != "" {
		srv = newMetricsServer(cfg.MetricsAddr)
		go func() {
			log.Info(ctx, "serving metrics", logger.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(ctx, "metrics server failed", logger.Error(err))
			}
		}()
	}

	if err := runPipeline(ctx, svc, fins, time.Now().UTC()); err != nil {
		return err
	}

	if srv == nil {
		return nil
	}

	// Keep serving metrics until shutdown is requested.
	<-ctx.Done()
	log.Info(ctx, "shutting down metrics server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "metrics server shutdown failed", logger.Error(err))
	}
	return nil
}

// runPipeline finalizes every tournament in order, sweeps decay as of asOf,
// recomputes both lists and logs them. Rankings are also recomputed whenever
// the event day changes, so later tournaments are valued from the rankings
// earned before them.
func runPipeline(ctx context.Context, svc *service.Service, fins []service.Finalization, asOf time.Time) error {
	log := logger.Get().Named("pipeline")

	var day time.Time
	for _, f := range fins {
		next := f.Date.UTC().Truncate(24 * time.Hour)
		if !day.IsZero() && next.After(day) {
			if _, err := svc.RecomputeRankings(ctx, f.Date); err != nil {
				return fmt.Errorf("recompute rankings before %s: %w", f.TournamentID, err)
			}
		}
		day = next
		if _, err := svc.FinalizeTournament(ctx, f); err != nil {
			return fmt.Errorf("finalize %s: %w", f.TournamentID, err)
		}
	}

	report, err := svc.SweepDecay(ctx, asOf)
	if err != nil {
		return fmt.Errorf("sweep decay: %w", err)
	}
	for _, failure := range report.Failed {
		log.Warn(ctx, "partition not refreshed",
			logger.String("tournament", failure.TournamentID),
			logger.Error(failure.Err),
		)
	}

	lists, err := svc.RecomputeRankings(ctx, asOf)
	if err != nil {
		return fmt.Errorf("recompute rankings: %w", err)
	}
	for _, row := range lists.RankList {
		log.Info(ctx, "rank",
			logger.Int("rank", row.Rank),
			logger.String("player", row.PlayerID),
			logger.Float64("points", row.Points),
			logger.Int("events", row.EventCount),
		)
	}
	for _, row := range lists.RatingList {
		log.Info(ctx, "rating",
			logger.Int("position", row.Position),
			logger.String("player", row.PlayerID),
			logger.Float64("rating", row.Rating),
			logger.Float64("deviation", row.RatingDeviation),
		)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	log.Info(ctx, "pipeline finished",
		logger.Int("players", stats.Players),
		logger.Int("tournaments", stats.Tournaments),
		logger.Int("results", stats.Results),
		logger.Int("ranked", stats.RankedPlayers),
		logger.Int("rated", stats.RatedPlayers),
	)
	return nil
}

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
