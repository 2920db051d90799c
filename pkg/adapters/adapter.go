// Package adapters provides Gridcast data source connectors that retrieve
// season reference data and session timing from external systems and
// normalize them into the types of package timing.
//
// Each source kind has its own interface so callers depend only on what they
// consume. Available adapters:
//   - RosterAdapter    — season driver codes from an Ergast-compatible API
//   - ScheduleAdapter  — season event countries, turned into race names
//   - LapsAdapter      — per-lap sector timings for one session
//   - TelemetryAdapter — time-delta series of a driver's fastest lap against
//     the session's fastest lap
//
// All of them are thin HTTP + gjson extractors configured by URL templates and
// JSON paths. Adapters only pull and shape data; aggregation and ranking live
// in package prediction.
package adapters

import (
	"context"
	"errors"
	"time"

	"github.com/HatiCode/gridcast/pkg/timing"
)

// ErrNoSessionData is returned when a session has no published timing data,
// e.g. it was cancelled or has not taken place yet.
var ErrNoSessionData = errors.New("no session data")

// RosterSource returns the driver codes of a season.
type RosterSource interface {
	Drivers(ctx context.Context, season int) ([]timing.Driver, error)
}

// ScheduleSource returns the races of a season in calendar order.
type ScheduleSource interface {
	Races(ctx context.Context, season int) ([]timing.Race, error)
}

// SessionSource returns per-lap timing samples for one session.
// It must return an error wrapping ErrNoSessionData when nothing is published.
type SessionSource interface {
	Laps(ctx context.Context, season int, race timing.Race, kind timing.SessionKind) ([]timing.Sample, error)
}

// DeltaPoint is one point of a delta series: positive Delta means the driver
// is behind the reference lap at that distance.
type DeltaPoint struct {
	Distance float64       `json:"distance"`
	Delta    time.Duration `json:"delta"`
}

// DeltaSeries is a time-delta series aligned on a common distance axis.
type DeltaSeries struct {
	Driver    timing.Driver `json:"driver"`
	Reference timing.Driver `json:"reference,omitempty"`
	Points    []DeltaPoint  `json:"points"`
}

// TelemetrySource compares a driver's fastest lap with the session's fastest lap.
type TelemetrySource interface {
	DeltaTime(ctx context.Context, season int, race timing.Race, kind timing.SessionKind, driver timing.Driver) (DeltaSeries, error)
}
