// Package session loads timing samples of an event's sessions.
//
// Practice sessions are often cancelled or not yet published, so
// LoadPracticeSessions never fails: a session that cannot be loaded
// contributes an empty sample set and the others are used as they are.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/HatiCode/gridcast/pkg/adapters"
	"github.com/HatiCode/gridcast/pkg/timing"
)

// FailureFunc is notified when a practice session could not be loaded.
type FailureFunc func(kind timing.SessionKind, err error)

// Loader fetches sessions from a SessionSource.
type Loader struct {
	source    adapters.SessionSource
	logger    *slog.Logger
	onFailure FailureFunc
}

// NewLoader creates a Loader. A nil logger selects slog.Default().
func NewLoader(source adapters.SessionSource, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{source: source, logger: logger}
}

// OnFailure registers fn to be called for every absorbed session failure.
func (l *Loader) OnFailure(fn FailureFunc) {
	l.onFailure = fn
}

// Load fetches a single session. Errors keep their cause, e.g.
// adapters.ErrNoSessionData, for errors.Is.
func (l *Loader) Load(ctx context.Context, season int, race timing.Race, kind timing.SessionKind) ([]timing.Sample, error) {
	samples, err := l.source.Laps(ctx, season, race, kind)
	if err != nil {
		return nil, fmt.Errorf("load %s %d %s: %w", race, season, kind, err)
	}
	return samples, nil
}

// LoadPracticeSessions fetches the three practice sessions concurrently and
// returns their samples indexed Practice 1, 2, 3. A failed session yields an
// empty set; the call itself always succeeds.
func (l *Loader) LoadPracticeSessions(ctx context.Context, season int, race timing.Race) [3][]timing.Sample {
	var out [3][]timing.Sample

	// Plain errgroup, not WithContext: one failure must not cancel the others.
	var g errgroup.Group
	for i, kind := range timing.PracticeSessions {
		g.Go(func() error {
			start := time.Now()
			samples, err := l.Load(ctx, season, race, kind)
			if err != nil {
				l.absorb(season, race, kind, err)
				return nil
			}
			out[i] = samples
			l.logger.Debug("session loaded",
				"season", season,
				"race", race,
				"session", kind.String(),
				"samples", len(samples),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (l *Loader) absorb(season int, race timing.Race, kind timing.SessionKind, err error) {
	level := slog.LevelWarn
	if errors.Is(err, adapters.ErrNoSessionData) {
		level = slog.LevelInfo
	}
	l.logger.Log(context.Background(), level, "session unavailable, continuing without it",
		"season", season,
		"race", race,
		"session", kind.String(),
		"error", err,
	)
	if l.onFailure != nil {
		l.onFailure(kind, err)
	}
}
