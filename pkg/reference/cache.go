// Package reference serves the season driver roster and race list from a
// snapshot store, rebuilding a season's snapshot from remote sources when it
// is missing or stale.
//
// A snapshot is fresh only while its creation year equals the current year.
// The comparison is on calendar years, not elapsed time: a snapshot built on
// December 31 is stale on January 1, and one built in March is still fresh in
// November.
package reference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/HatiCode/gridcast/pkg/adapters"
	"github.com/HatiCode/gridcast/pkg/storage"
	"github.com/HatiCode/gridcast/pkg/timing"
)

var (
	// ErrRemoteUnavailable is returned when a rebuild cannot reach the
	// roster or schedule source. There is no fallback to stale data.
	ErrRemoteUnavailable = errors.New("reference data source unavailable")

	// ErrPersist is returned when a rebuilt snapshot cannot be stored.
	ErrPersist = errors.New("reference snapshot not persisted")

	// ErrUnknownRace is returned by CheckRace for races outside the season list.
	ErrUnknownRace = errors.New("unknown race")
)

// RebuildFunc is notified after every rebuild attempt.
type RebuildFunc func(season int, reason string, duration time.Duration, err error)

// Rebuild reasons passed to RebuildFunc.
const (
	ReasonMissing = "missing"
	ReasonStale   = "stale"
	ReasonRefresh = "refresh"
)

// Options configures a Cache. Zero values select defaults.
type Options struct {
	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// OnRebuild, if set, is called after each rebuild attempt.
	OnRebuild RebuildFunc
	// OnHit, if set, is called when a fresh snapshot is served without a rebuild.
	OnHit func(season int)
}

// Cache owns the reference data of every season.
// It is safe for concurrent use; at most one rebuild per season is in flight.
type Cache struct {
	store    storage.Store
	roster   adapters.RosterSource
	schedule adapters.ScheduleSource

	now       func() time.Time
	logger    *slog.Logger
	onRebuild RebuildFunc
	onHit     func(season int)

	flight singleflight.Group
}

// New creates a Cache backed by store that rebuilds from roster and schedule.
func New(store storage.Store, roster adapters.RosterSource, schedule adapters.ScheduleSource, opts Options) *Cache {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Cache{
		store:     store,
		roster:    roster,
		schedule:  schedule,
		now:       opts.Now,
		logger:    opts.Logger,
		onRebuild: opts.OnRebuild,
		onHit:     opts.OnHit,
	}
}

// GetDrivers returns the roster of season, rebuilding the snapshot first if
// it is missing or stale.
func (c *Cache) GetDrivers(ctx context.Context, season int) ([]timing.Driver, error) {
	snap, err := c.Snapshot(ctx, season)
	if err != nil {
		return nil, err
	}
	return snap.Drivers, nil
}

// GetRaces returns the race list of season, rebuilding the snapshot first if
// it is missing or stale.
func (c *Cache) GetRaces(ctx context.Context, season int) ([]timing.Race, error) {
	snap, err := c.Snapshot(ctx, season)
	if err != nil {
		return nil, err
	}
	return snap.Races, nil
}

// Snapshot returns a fresh snapshot of season.
func (c *Cache) Snapshot(ctx context.Context, season int) (storage.Snapshot, error) {
	if err := validateSeason(season); err != nil {
		return storage.Snapshot{}, err
	}

	snap, found, err := c.store.Get(ctx, season)
	if err != nil {
		c.logger.Warn("failed to read reference snapshot, rebuilding",
			"season", season,
			"error", err,
		)
	}

	switch {
	case err == nil && found && c.fresh(snap):
		if c.onHit != nil {
			c.onHit(season)
		}
		return cloneSnapshot(snap), nil
	case err == nil && found:
		c.logger.Info("reference snapshot is stale",
			"season", season,
			"created_at", snap.CreatedAt,
		)
		return c.rebuild(ctx, season, ReasonStale)
	default:
		return c.rebuild(ctx, season, ReasonMissing)
	}
}

// CheckRace returns an error wrapping ErrUnknownRace if race is not in the
// race list of season.
func (c *Cache) CheckRace(ctx context.Context, season int, race timing.Race) error {
	races, err := c.GetRaces(ctx, season)
	if err != nil {
		return err
	}
	if !slices.Contains(races, race) {
		return fmt.Errorf("%w: %q in %d", ErrUnknownRace, race, season)
	}
	return nil
}

// Refresh unconditionally rebuilds the snapshot of season from the remote
// sources and persists it with the current time as creation time.
func (c *Cache) Refresh(ctx context.Context, season int) (storage.Snapshot, error) {
	if err := validateSeason(season); err != nil {
		return storage.Snapshot{}, err
	}
	return c.rebuild(ctx, season, ReasonRefresh)
}

// fresh reports whether snap was created in the current calendar year.
func (c *Cache) fresh(snap storage.Snapshot) bool {
	now := c.now()
	return snap.CreatedAt.In(now.Location()).Year() == now.Year()
}

// rebuild fetches and stores a new snapshot. Concurrent callers for the same
// season share a single rebuild and its result.
func (c *Cache) rebuild(ctx context.Context, season int, reason string) (storage.Snapshot, error) {
	ch := c.flight.DoChan(strconv.Itoa(season), func() (any, error) {
		// Detached from the first caller so its cancellation does not fail
		// every caller sharing this rebuild.
		return c.build(context.WithoutCancel(ctx), season, reason)
	})

	select {
	case <-ctx.Done():
		return storage.Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return storage.Snapshot{}, res.Err
		}
		return cloneSnapshot(res.Val.(storage.Snapshot)), nil
	}
}

func (c *Cache) build(ctx context.Context, season int, reason string) (storage.Snapshot, error) {
	start := time.Now()
	snap, err := c.fetchAndStore(ctx, season)
	duration := time.Since(start)

	if c.onRebuild != nil {
		c.onRebuild(season, reason, duration, err)
	}

	if err != nil {
		c.logger.Error("reference rebuild failed",
			"season", season,
			"reason", reason,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return storage.Snapshot{}, err
	}

	c.logger.Info("reference snapshot rebuilt",
		"season", season,
		"reason", reason,
		"drivers", len(snap.Drivers),
		"races", len(snap.Races),
		"duration_ms", duration.Milliseconds(),
	)
	return snap, nil
}

func (c *Cache) fetchAndStore(ctx context.Context, season int) (storage.Snapshot, error) {
	var (
		drivers []timing.Driver
		races   []timing.Race
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		drivers, err = c.roster.Drivers(gctx, season)
		if err != nil {
			return fmt.Errorf("%w: roster: %w", ErrRemoteUnavailable, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		races, err = c.schedule.Races(gctx, season)
		if err != nil {
			return fmt.Errorf("%w: schedule: %w", ErrRemoteUnavailable, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return storage.Snapshot{}, err
	}

	snap := storage.Snapshot{
		Season:    season,
		Drivers:   drivers,
		Races:     races,
		CreatedAt: c.now(),
	}

	if err := c.store.Put(ctx, snap); err != nil {
		return storage.Snapshot{}, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	return snap, nil
}

func validateSeason(season int) error {
	if season < 1950 || season > 9999 {
		return fmt.Errorf("invalid season %d", season)
	}
	return nil
}

func cloneSnapshot(s storage.Snapshot) storage.Snapshot {
	s.Drivers = slices.Clone(s.Drivers)
	s.Races = slices.Clone(s.Races)
	return s
}
