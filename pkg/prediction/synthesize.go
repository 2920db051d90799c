package prediction

import (
	"slices"
	"time"

	"github.com/HatiCode/gridcast/pkg/timing"
)

// SyntheticLap is a driver's theoretical best lap.
type SyntheticLap struct {
	Driver  timing.Driver
	Time    timing.LapTime
	Sectors [3]timing.LapTime
}

// ExclusionReason explains why a driver has no SyntheticLap.
type ExclusionReason int

const (
	// ExcludedIncomplete means the driver lacks an accurate time in at least one sector.
	ExcludedIncomplete ExclusionReason = iota + 1
	// ExcludedNotInRoster means the driver posted times but is not in the season roster.
	ExcludedNotInRoster
)

func (r ExclusionReason) String() string {
	switch r {
	case ExcludedIncomplete:
		return "incomplete"
	case ExcludedNotInRoster:
		return "not_in_roster"
	default:
		return "unknown"
	}
}

// Synthesis is the result of Synthesize.
type Synthesis struct {
	// Laps are in universe order.
	Laps     []SyntheticLap
	Excluded map[timing.Driver]ExclusionReason
}

// Lap returns the synthetic lap for a driver, if one was produced.
func (s Synthesis) Lap(d timing.Driver) (SyntheticLap, bool) {
	for _, l := range s.Laps {
		if l.Driver == d {
			return l, true
		}
	}
	return SyntheticLap{}, false
}

// Synthesize builds a synthetic lap for every universe driver whose three
// sector sequences are non-empty. A driver with partial data never gets a
// partial or estimated lap.
func Synthesize(universe []timing.Driver, sets *SectorSets) Synthesis {
	res := Synthesis{
		Laps:     make([]SyntheticLap, 0, len(universe)),
		Excluded: make(map[timing.Driver]ExclusionReason),
	}

	inRoster := make(map[timing.Driver]struct{}, len(universe))
	for _, d := range universe {
		inRoster[d] = struct{}{}
	}

	for _, d := range sets.Drivers() {
		st, _ := sets.Get(d)

		if _, ok := inRoster[d]; !ok {
			res.Excluded[d] = ExcludedNotInRoster
			continue
		}

		lap, ok := synthesizeLap(d, st)
		if !ok {
			res.Excluded[d] = ExcludedIncomplete
			continue
		}
		res.Laps = append(res.Laps, lap)
	}

	return res
}

func synthesizeLap(d timing.Driver, st *SectorTimes) (SyntheticLap, bool) {
	if st == nil || !st.Complete() {
		return SyntheticLap{}, false
	}

	lap := SyntheticLap{Driver: d}
	var total time.Duration
	for i, times := range st {
		best := slices.Min(times)
		lap.Sectors[i] = timing.LapTime(best)
		total += best
	}
	lap.Time = timing.LapTime(total)

	return lap, true
}
