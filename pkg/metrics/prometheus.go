// Package metrics provides Prometheus metrics for the pinrank ranking engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// defaultLatencyBuckets are milliseconds.
var defaultLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000} //nolint:gochecknoglobals // bucket table

// Manager owns every Prometheus collector of the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Tournament finalization
	tournamentsValued prometheus.Counter
	firstPlaceValue   prometheus.Histogram
	pointsAwarded     prometheus.Counter
	optedOutEntrants  prometheus.Counter

	// Decay sweeps
	decayResultsSwept      prometheus.Counter
	decayPartitionFailures prometheus.Counter
	decaySweepDuration     prometheus.Histogram
	decaySweepLastUnix     prometheus.Gauge

	// Ratings and rankings
	ratingUpdates      prometheus.Counter
	ratingsSkipped     prometheus.Counter
	playersNewlyRated  prometheus.Counter
	rankingRecomputes  prometheus.Counter
	rankedPlayers      prometheus.Gauge
	ratedPlayers       prometheus.Gauge
	rankingRecomputeMs prometheus.Histogram

	// Error and warning taxonomy
	validationErrors *prometheus.CounterVec
	warnings         *prometheus.CounterVec

	// Repository
	repositoryPlayers     prometheus.Gauge
	repositoryResults     prometheus.Gauge
	repositoryLatency     *prometheus.HistogramVec
	repositoryTournaments prometheus.Gauge

	// Sweep queue and workers
	queueCapacity    prometheus.Gauge
	queueSize        prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueRejected    *prometheus.CounterVec
	workerActive     prometheus.Gauge
	workerPartitions prometheus.Counter
	workerLatency    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pinrank",
		subsystem:        "engine",
		histogramBuckets: defaultLatencyBuckets,
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.tournamentsValued = m.counter("tournaments_valued_total", "Tournaments whose value was computed at finalization")
	m.firstPlaceValue = m.histogram("first_place_value", "Distribution of computed first place values",
		[]float64{5, 10, 25, 50, 75, 100, 150, 200, 250})
	m.pointsAwarded = m.counter("points_awarded_total", "Sum of points awarded to non opted-out entrants")
	m.optedOutEntrants = m.counter("opted_out_entrants_total", "Entrants recorded with zero points because they opted out")

	m.decayResultsSwept = m.counter("decay_results_swept_total", "Results whose decay fields were refreshed")
	m.decayPartitionFailures = m.counter("decay_partition_failures_total", "Sweep partitions reported as failed")
	m.decaySweepDuration = m.histogram("decay_sweep_duration_milliseconds", "Wall time of a full decay sweep", m.histogramBuckets)
	m.decaySweepLastUnix = m.gauge("decay_sweep_last_unix", "Unix time of the last completed decay sweep")

	m.ratingUpdates = m.counter("rating_updates_total", "Player rating transitions applied")
	m.ratingsSkipped = m.counter("rating_batches_skipped_total", "Tournament rating batches skipped because they were already applied")
	m.playersNewlyRated = m.counter("players_newly_rated_total", "Players whose rated flag flipped to true")
	m.rankingRecomputes = m.counter("ranking_recomputes_total", "Rank and rating list recomputations")
	m.rankedPlayers = m.gauge("ranked_players", "Players holding a ranking position")
	m.ratedPlayers = m.gauge("rated_players", "Players on the rating list")
	m.rankingRecomputeMs = m.histogram("ranking_recompute_duration_milliseconds", "Ranking recomputation latency", m.histogramBuckets)

	m.validationErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "validation_errors_total",
		Help:        "Rejected inputs by operation",
		ConstLabels: m.customLabels,
	}, []string{"operation"})
	m.warnings = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "warnings_total",
		Help:        "Soft warnings that did not abort computation, by kind",
		ConstLabels: m.customLabels,
	}, []string{"kind"})

	m.repositoryPlayers = m.gauge("repository_players", "Players held by the store")
	m.repositoryResults = m.gauge("repository_results", "Results held by the store")
	m.repositoryTournaments = m.gauge("repository_tournaments", "Tournaments held by the store")
	m.repositoryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "repository_latency_milliseconds",
		Help:        "Store operation latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, []string{"operation"})

	m.queueCapacity = m.gauge("sweep_queue_capacity", "Capacity of the sweep partition queue")
	m.queueSize = m.gauge("sweep_queue_size", "Partitions waiting in the sweep queue")
	m.queueEnqueued = m.counter("sweep_queue_enqueued_total", "Partitions accepted by the sweep queue")
	m.queueRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "sweep_queue_rejected_total",
		Help:        "Partitions rejected by the sweep queue, by reason",
		ConstLabels: m.customLabels,
	}, []string{"reason"})
	m.workerActive = m.gauge("sweep_workers_active", "Sweep workers currently running")
	m.workerPartitions = m.counter("sweep_partitions_processed_total", "Partitions processed by sweep workers")
	m.workerLatency = m.histogram("sweep_partition_latency_milliseconds", "Per partition processing latency", m.histogramBuckets)
}

// RecordTournamentValued counts a valued tournament and observes its first place value.
func RecordTournamentValued(firstPlaceValue float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.tournamentsValued.Inc()
	globalManager.firstPlaceValue.Observe(firstPlaceValue)
}

// RecordPointsAwarded adds to the awarded points total.
func RecordPointsAwarded(points float64, optedOut int) {
	if !globalManager.enabled {
		return
	}
	if points > 0 {
		globalManager.pointsAwarded.Add(points)
	}
	globalManager.optedOutEntrants.Add(float64(optedOut))
}

// RecordDecaySwept counts results refreshed by a sweep partition.
func RecordDecaySwept(results int) {
	if !globalManager.enabled {
		return
	}
	globalManager.decayResultsSwept.Add(float64(results))
}

// RecordDecayPartitionFailure counts a failed sweep partition.
func RecordDecayPartitionFailure() {
	if !globalManager.enabled {
		return
	}
	globalManager.decayPartitionFailures.Inc()
}

// RecordDecaySweep observes a completed sweep.
func RecordDecaySweep(duration time.Duration, finished time.Time) {
	if !globalManager.enabled {
		return
	}
	globalManager.decaySweepDuration.Observe(float64(duration.Milliseconds()))
	globalManager.decaySweepLastUnix.Set(float64(finished.Unix()))
}

// RecordRatingUpdates counts applied player rating transitions.
func RecordRatingUpdates(players, newlyRated int) {
	if !globalManager.enabled {
		return
	}
	globalManager.ratingUpdates.Add(float64(players))
	globalManager.playersNewlyRated.Add(float64(newlyRated))
}

// RecordRatingBatchSkipped counts a rating batch that was already applied.
func RecordRatingBatchSkipped() {
	if !globalManager.enabled {
		return
	}
	globalManager.ratingsSkipped.Inc()
}

// RecordRankingRecompute observes a ranking recomputation.
func RecordRankingRecompute(duration time.Duration, ranked, rated int) {
	if !globalManager.enabled {
		return
	}
	globalManager.rankingRecomputes.Inc()
	globalManager.rankingRecomputeMs.Observe(float64(duration.Milliseconds()))
	globalManager.rankedPlayers.Set(float64(ranked))
	globalManager.ratedPlayers.Set(float64(rated))
}

// RecordValidationError counts a rejected input for operation.
func RecordValidationError(operation string) {
	if !globalManager.enabled {
		return
	}
	globalManager.validationErrors.WithLabelValues(operation).Inc()
}

// RecordWarning counts a soft warning of the given kind.
func RecordWarning(kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.warnings.WithLabelValues(kind).Inc()
}

// UpdateRepositorySizes publishes the store cardinalities.
func UpdateRepositorySizes(players, tournaments, results int) {
	if !globalManager.enabled {
		return
	}
	globalManager.repositoryPlayers.Set(float64(players))
	globalManager.repositoryTournaments.Set(float64(tournaments))
	globalManager.repositoryResults.Set(float64(results))
}

// RecordRepositoryLatency observes the latency of a store operation.
func RecordRepositoryLatency(operation string, latency time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.repositoryLatency.WithLabelValues(operation).Observe(float64(latency.Milliseconds()))
}

// UpdateQueueCapacity sets the sweep queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the sweep queue backlog gauge.
func UpdateQueueSize(size int) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueSize.Set(float64(size))
}

// RecordQueueEnqueue counts an accepted partition.
func RecordQueueEnqueue() {
	if !globalManager.enabled {
		return
	}
	globalManager.queueEnqueued.Inc()
}

// RecordQueueRejected counts a rejected partition.
func RecordQueueRejected(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// UpdateWorkerActive sets the running sweep worker gauge.
func UpdateWorkerActive(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.workerActive.Set(float64(count))
}

// RecordPartitionProcessed counts a processed partition and observes its latency.
func RecordPartitionProcessed(latency time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.workerPartitions.Inc()
	globalManager.workerLatency.Observe(float64(latency.Milliseconds()))
}

// GetRegistry returns the registry the global manager publishes to.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
