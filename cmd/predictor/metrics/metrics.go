// Package metrics provides Prometheus metrics instrumentation for the predictor.
//
// Metrics exposed:
//   - gridcast_predict_seconds: Histogram of end-to-end prediction duration
//   - gridcast_stage_seconds: Histogram of pipeline stage duration by stage
//   - gridcast_reference_cache_hits_total: Counter of snapshots served without rebuild
//   - gridcast_reference_rebuilds_total: Counter of rebuilds by reason and result
//   - gridcast_reference_rebuild_seconds: Histogram of rebuild duration
//   - gridcast_session_load_failures_total: Counter of absorbed session failures
//   - gridcast_ranked_drivers: Gauge of drivers in the last prediction
//   - gridcast_errors_total: Counter of errors by component and reason
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/HatiCode/gridcast/pkg/timing"
)

// Pipeline stages observed by ObserveStage.
const (
	StageReference  = "reference"
	StageSessions   = "sessions"
	StageAggregate  = "aggregate"
	StageSynthesize = "synthesize"
	StageRank       = "rank"
)

// Metrics holds all Prometheus metrics for the predictor.
type Metrics struct {
	PredictSeconds       prometheus.Histogram
	StageSeconds         *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	RebuildsTotal        *prometheus.CounterVec
	RebuildSeconds       prometheus.Histogram
	SessionFailuresTotal *prometheus.CounterVec
	RankedDrivers        prometheus.Gauge
	ErrorsTotal          *prometheus.CounterVec
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PredictSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridcast_predict_seconds",
			Help:    "Time spent producing one prediction",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}),

		StageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridcast_stage_seconds",
			Help:    "Time spent in each prediction pipeline stage",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),

		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "gridcast_reference_cache_hits_total",
			Help: "Reference snapshots served without a rebuild",
		}),

		RebuildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gridcast_reference_rebuilds_total",
			Help: "Reference snapshot rebuilds by reason and result",
		}, []string{"reason", "result"}),

		RebuildSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridcast_reference_rebuild_seconds",
			Help:    "Time spent rebuilding a reference snapshot",
			Buckets: prometheus.DefBuckets,
		}),

		SessionFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gridcast_session_load_failures_total",
			Help: "Practice sessions that could not be loaded and were treated as empty",
		}, []string{"session"}),

		RankedDrivers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gridcast_ranked_drivers",
			Help: "Number of drivers ranked in the last prediction",
		}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gridcast_errors_total",
			Help: "Total number of errors by component and reason",
		}, []string{"component", "reason"}),
	}
}

// ObservePredict records the duration of a whole prediction.
func (m *Metrics) ObservePredict(d time.Duration) {
	m.PredictSeconds.Observe(d.Seconds())
}

// ObserveStage records the duration of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordCacheHit counts a snapshot served from storage.
func (m *Metrics) RecordCacheHit(season int) {
	m.CacheHitsTotal.Inc()
}

// RecordRebuild counts a rebuild attempt and its duration.
func (m *Metrics) RecordRebuild(season int, reason string, d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.RebuildsTotal.WithLabelValues(reason, result).Inc()
	m.RebuildSeconds.Observe(d.Seconds())
}

// RecordSessionFailure counts a practice session treated as empty.
func (m *Metrics) RecordSessionFailure(kind timing.SessionKind, err error) {
	m.SessionFailuresTotal.WithLabelValues(kind.String()).Inc()
}

// SetRankedDrivers sets the number of ranked drivers.
func (m *Metrics) SetRankedDrivers(n int) {
	m.RankedDrivers.Set(float64(n))
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
