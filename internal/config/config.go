// Package config defines the engine configuration and how it is loaded.
//
// Conventions:
//   - New(ctx) returns the built-in policy tables.
//   - Load(ctx) layers a YAML file and PINRANK_ environment variables on top.
//   - Validate reports problems wrapped in ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/okian/pinrank/internal/domain/decay"
	"github.com/okian/pinrank/internal/domain/model"
	"github.com/okian/pinrank/internal/domain/ranking"
	"github.com/okian/pinrank/internal/domain/rating"
	"github.com/okian/pinrank/internal/domain/valuation"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr serves /metrics when set, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`

	// DatasetPath points at the YAML tournament dataset.
	DatasetPath string `koanf:"dataset_path"`

	// WorkerCount sets the number of decay sweep workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the sweep partition queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize bounds the ledger of tournaments whose ratings were applied.
	DedupeSize int `koanf:"dedupe_size"`

	// BoosterMultipliers maps booster codes to their multiplier.
	BoosterMultipliers map[string]float64 `koanf:"booster_multipliers"`

	BaseValuePerPlayer float64 `koanf:"base_value_per_player"`
	BaseValueCap       float64 `koanf:"base_value_cap"`
	RatingTVACap       float64 `koanf:"rating_tva_cap"`
	RankingTVACap      float64 `koanf:"ranking_tva_cap"`
	TotalTVACap        float64 `koanf:"total_tva_cap"`

	LinearShare       float64 `koanf:"linear_share"`
	DynamicExponent   float64 `koanf:"dynamic_exponent"`
	DynamicPower      float64 `koanf:"dynamic_power"`
	DynamicFieldShare float64 `koanf:"dynamic_field_share"`
	DynamicFieldCap   float64 `koanf:"dynamic_field_cap"`

	// DecaySteps is the age table, youngest bracket first.
	DecaySteps []decay.Step `koanf:"decay_steps"`

	InitialRating    float64 `koanf:"initial_rating"`
	InitialDeviation float64 `koanf:"initial_deviation"`
	DeviationFloor   float64 `koanf:"deviation_floor"`
	InactivityGrowth float64 `koanf:"inactivity_growth"`
	LearningRate     float64 `koanf:"learning_rate"`
	RatedThreshold   int     `koanf:"rated_threshold"`

	RankingMinEvents      int `koanf:"ranking_min_events"`
	RankingWindowDays     int `koanf:"ranking_window_days"`
	RankingCountedResults int `koanf:"ranking_counted_results"`
}

// New creates a Config holding the built-in defaults. Context is accepted
// first to satisfy the project-wide convention.
func New(_ context.Context) *Config {
	boosters := make(map[string]float64)
	for b, m := range valuation.DefaultBoosterMultipliers() {
		boosters[string(b)] = m
	}

	return &Config{
		LogLevel:              "info",
		WorkerCount:           runtime.NumCPU(),
		QueueSize:             1024,
		DedupeSize:            50_000,
		BoosterMultipliers:    boosters,
		BaseValuePerPlayer:    0.5,
		BaseValueCap:          32.0,
		RatingTVACap:          25.0,
		RankingTVACap:         50.0,
		TotalTVACap:           75.0,
		LinearShare:           0.10,
		DynamicExponent:       0.7,
		DynamicPower:          3.0,
		DynamicFieldShare:     0.5,
		DynamicFieldCap:       64.0,
		DecaySteps:            decay.DefaultSteps(),
		InitialRating:         rating.DefaultInitialRating,
		InitialDeviation:      rating.DefaultInitialDeviation,
		DeviationFloor:        rating.DefaultDeviationFloor,
		InactivityGrowth:      rating.DefaultInactivityGrowth,
		LearningRate:          rating.DefaultLearningRate,
		RatedThreshold:        model.RatedThreshold,
		RankingMinEvents:      ranking.DefaultMinEvents,
		RankingWindowDays:     ranking.DefaultWindowDays,
		RankingCountedResults: ranking.DefaultCountedResults,
	}
}

// Boosters converts BoosterMultipliers into the valuation policy table.
func (c *Config) Boosters() (map[model.Booster]float64, error) {
	codes := make([]string, 0, len(c.BoosterMultipliers))
	for code := range c.BoosterMultipliers {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	table := make(map[model.Booster]float64, len(codes))
	for _, code := range codes {
		b, err := model.ParseBooster(code)
		if err != nil {
			return nil, fmt.Errorf("%w: booster_multipliers: %w", ErrInvalidConfig, err)
		}
		table[b] = c.BoosterMultipliers[code]
	}
	return table, nil
}

// Validate checks the settings that are not validated by the components
// they configure.
func (c *Config) Validate() error {
	switch {
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.DedupeSize < 1:
		return fmt.Errorf("%w: dedupe_size must be positive, got %d", ErrInvalidConfig, c.DedupeSize)
	case len(c.DecaySteps) == 0:
		return fmt.Errorf("%w: decay_steps must not be empty", ErrInvalidConfig)
	case c.RatedThreshold < 1:
		return fmt.Errorf("%w: rated_threshold must be positive, got %d", ErrInvalidConfig, c.RatedThreshold)
	case c.RankingMinEvents < 1 || c.RankingWindowDays < 1 || c.RankingCountedResults < 1:
		return fmt.Errorf("%w: ranking settings must be positive", ErrInvalidConfig)
	}

	table, err := c.Boosters()
	if err != nil {
		return err
	}
	for _, b := range model.Boosters() {
		if _, ok := table[b]; !ok {
			return fmt.Errorf("%w: booster_multipliers: missing %s", ErrInvalidConfig, b)
		}
	}
	return nil
}
