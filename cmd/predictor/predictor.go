// Package main implements the prediction pipeline orchestration.
//
// This file contains the Predictor type which runs one prediction:
//
//	drivers → sessions → aggregate → synthesize → rank
//
// The season roster comes from the reference cache, practice samples from the
// session loader. Every stage is timed, logged and recorded in Prometheus.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/HatiCode/gridcast/cmd/predictor/metrics"
	"github.com/HatiCode/gridcast/pkg/prediction"
	"github.com/HatiCode/gridcast/pkg/reference"
	"github.com/HatiCode/gridcast/pkg/report"
	"github.com/HatiCode/gridcast/pkg/session"
	"github.com/HatiCode/gridcast/pkg/timing"
)

// Predictor produces qualifying predictions from practice data.
type Predictor struct {
	cache   *reference.Cache
	loader  *session.Loader
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewPredictor creates a Predictor. metrics may be nil.
func NewPredictor(cache *reference.Cache, loader *session.Loader, logger *slog.Logger, m *metrics.Metrics) *Predictor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Predictor{
		cache:   cache,
		loader:  loader,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Predict ranks the drivers of season by their theoretical best lap over the
// practice sessions of race. A race outside the season list fails with
// reference.ErrUnknownRace; an unreachable roster or schedule source fails
// with reference.ErrRemoteUnavailable. Missing practice sessions only reduce
// the data used.
func (p *Predictor) Predict(ctx context.Context, season int, race timing.Race) (*report.Prediction, error) {
	start := time.Now()

	drivers, err := p.reference(ctx, season, race)
	if err != nil {
		p.recordError("reference", err)
		return nil, err
	}

	sessions := timed(p, metrics.StageSessions, func() [3][]timing.Sample {
		return p.loader.LoadPracticeSessions(ctx, season, race)
	})
	if err := ctx.Err(); err != nil {
		p.recordError("sessions", err)
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	sets := timed(p, metrics.StageAggregate, func() *prediction.SectorSets {
		return prediction.Aggregate(drivers, sessions[:]...)
	})
	synth := timed(p, metrics.StageSynthesize, func() prediction.Synthesis {
		return prediction.Synthesize(drivers, sets)
	})

	counts := [3]int{len(sessions[0]), len(sessions[1]), len(sessions[2])}
	result := timed(p, metrics.StageRank, func() *report.Prediction {
		return report.New(season, race, synth, counts, p.now())
	})

	total := time.Since(start)
	if p.metrics != nil {
		p.metrics.ObservePredict(total)
		p.metrics.SetRankedDrivers(len(result.Entries))
	}

	p.logger.Info("prediction complete",
		"season", season,
		"race", race,
		"drivers", len(drivers),
		"ranked", len(result.Entries),
		"excluded", len(result.Excluded),
		"fp1_samples", counts[0],
		"fp2_samples", counts[1],
		"fp3_samples", counts[2],
		"total_ms", total.Milliseconds(),
	)

	return result, nil
}

// reference returns the season roster after checking the race is on the
// season calendar.
func (p *Predictor) reference(ctx context.Context, season int, race timing.Race) ([]timing.Driver, error) {
	start := time.Now()
	defer func() { p.observe(metrics.StageReference, time.Since(start)) }()

	if err := p.cache.CheckRace(ctx, season, race); err != nil {
		return nil, err
	}
	drivers, err := p.cache.GetDrivers(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}
	return drivers, nil
}

func timed[T any](p *Predictor, stage string, fn func() T) T {
	start := time.Now()
	out := fn()
	p.observe(stage, time.Since(start))
	return out
}

func (p *Predictor) observe(stage string, d time.Duration) {
	if p.metrics != nil {
		p.metrics.ObserveStage(stage, d)
	}
	p.logger.Debug("stage complete", "stage", stage, "duration_ms", d.Milliseconds())
}

func (p *Predictor) recordError(component string, err error) {
	if p.metrics != nil {
		p.metrics.RecordError(component, errorReason(err))
	}
}

// errorReason maps an error to a low-cardinality metric label.
func errorReason(err error) string {
	switch {
	case errors.Is(err, reference.ErrRemoteUnavailable):
		return "remote_unavailable"
	case errors.Is(err, reference.ErrPersist):
		return "persist_failed"
	case errors.Is(err, reference.ErrUnknownRace):
		return "unknown_race"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "other"
	}
}
