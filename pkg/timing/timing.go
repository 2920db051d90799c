// Package timing defines the data model shared by Gridcast components: drivers,
// races, session kinds, per-lap timing samples and lap-time values.
//
// Durations are kept as time.Duration end to end. LapTime only adds lap-time
// notation (m:ss.mmm) for display; comparisons and sorting always use the
// underlying duration, never the formatted string.
package timing

import (
	"fmt"
	"strings"
	"time"
)

// Driver is a season-local short code identifying a competitor, e.g. "VER".
type Driver string

// Race is a human-readable event name, e.g. "Bahrain Grand Prix".
type Race string

// RaceSuffix is appended to a country name to form a Race.
const RaceSuffix = "Grand Prix"

// RaceFromCountry builds the event name for a country.
func RaceFromCountry(country string) Race {
	return Race(strings.TrimSpace(country) + " " + RaceSuffix)
}

// ParseRace accepts an event name or a bare country: "Bahrain" and
// "Bahrain Grand Prix" both yield "Bahrain Grand Prix".
func ParseRace(s string) Race {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasSuffix(s, RaceSuffix) {
		return Race(s)
	}
	return RaceFromCountry(s)
}

// SessionKind identifies one session of a race weekend.
type SessionKind int

const (
	Practice1 SessionKind = iota + 1
	Practice2
	Practice3
	Qualifying
	RaceSession
)

// PracticeSessions lists the sessions a prediction is built from, in order.
var PracticeSessions = [3]SessionKind{Practice1, Practice2, Practice3}

func (k SessionKind) String() string {
	switch k {
	case Practice1:
		return "Practice 1"
	case Practice2:
		return "Practice 2"
	case Practice3:
		return "Practice 3"
	case Qualifying:
		return "Qualifying"
	case RaceSession:
		return "Race"
	default:
		return fmt.Sprintf("SessionKind(%d)", int(k))
	}
}

// ParseSessionKind accepts the labels produced by String as well as the
// short forms FP1, FP2, FP3, Q and R (case-insensitive).
func ParseSessionKind(s string) (SessionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "practice 1", "fp1":
		return Practice1, nil
	case "practice 2", "fp2":
		return Practice2, nil
	case "practice 3", "fp3":
		return Practice3, nil
	case "qualifying", "q":
		return Qualifying, nil
	case "race", "r":
		return RaceSession, nil
	default:
		return 0, fmt.Errorf("unknown session kind %q", s)
	}
}

// Sector is one sector time of a lap. Valid is false when the sector was
// not completed or the source had no value for it.
type Sector struct {
	Time  time.Duration
	Valid bool
}

// SectorTime returns a valid Sector.
func SectorTime(d time.Duration) Sector {
	return Sector{Time: d, Valid: true}
}

// Sample is one lap's sector timings for one driver in one session.
type Sample struct {
	Driver   Driver
	Sectors  [3]Sector
	Accurate bool
}
