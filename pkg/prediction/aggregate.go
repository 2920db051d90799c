// Package prediction turns practice timing samples into a predicted
// qualifying order.
//
// The pipeline is three pure steps:
//
//	Aggregate → Synthesize → Rank
//
// Aggregate collects every accurate sector time per driver in one pass over
// all sessions. Synthesize sums each driver's best time in every sector into a
// theoretical best lap; the three sectors need not come from the same lap or
// session. Rank orders the laps by duration and assigns positions.
package prediction

import (
	"time"

	"github.com/HatiCode/gridcast/pkg/timing"
)

// SectorTimes holds every accurate time a driver posted, one sequence per sector.
type SectorTimes [3][]time.Duration

// Complete reports whether every sector has at least one time.
func (s *SectorTimes) Complete() bool {
	return len(s[0]) > 0 && len(s[1]) > 0 && len(s[2]) > 0
}

// SectorSets maps drivers to their aggregated sector times and remembers the
// order in which drivers should be iterated.
type SectorSets struct {
	sets  map[timing.Driver]*SectorTimes
	order []timing.Driver
}

// Get returns the sector times for a driver.
func (s *SectorSets) Get(d timing.Driver) (*SectorTimes, bool) {
	st, ok := s.sets[d]
	return st, ok
}

// Drivers returns drivers in iteration order: the universe first, then any
// other driver in the order its first accurate sample was seen.
func (s *SectorSets) Drivers() []timing.Driver {
	out := make([]timing.Driver, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of drivers with an entry.
func (s *SectorSets) Len() int { return len(s.sets) }

// Aggregate collects the sector times of all accurate samples across sessions.
//
// Samples from drivers outside universe are aggregated too; whether they are
// reported is decided by Synthesize. Undefined sector values are skipped.
// Every sample is visited exactly once.
func Aggregate(universe []timing.Driver, sessions ...[]timing.Sample) *SectorSets {
	s := &SectorSets{
		sets:  make(map[timing.Driver]*SectorTimes, len(universe)),
		order: make([]timing.Driver, 0, len(universe)),
	}

	for _, d := range universe {
		if _, ok := s.sets[d]; ok {
			continue
		}
		s.sets[d] = &SectorTimes{}
		s.order = append(s.order, d)
	}

	for _, samples := range sessions {
		for _, sample := range samples {
			if !sample.Accurate {
				continue
			}

			st, ok := s.sets[sample.Driver]
			if !ok {
				st = &SectorTimes{}
				s.sets[sample.Driver] = st
				s.order = append(s.order, sample.Driver)
			}

			for i, sector := range sample.Sectors {
				if sector.Valid {
					st[i] = append(st[i], sector.Time)
				}
			}
		}
	}

	return s
}
