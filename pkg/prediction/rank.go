package prediction

import (
	"cmp"
	"slices"

	"github.com/HatiCode/gridcast/pkg/timing"
)

// RankedEntry is one row of the predicted qualifying order. Sectors are the
// best sector times the lap was built from.
type RankedEntry struct {
	Position int               `json:"position"`
	Driver   timing.Driver     `json:"driver"`
	Time     timing.LapTime    `json:"time"`
	Sectors  [3]timing.LapTime `json:"sectors"`
}

// Rank sorts laps by duration ascending and assigns positions from 1.
// Equal times keep their input order.
func Rank(laps []SyntheticLap) []RankedEntry {
	sorted := slices.Clone(laps)
	slices.SortStableFunc(sorted, func(a, b SyntheticLap) int {
		return cmp.Compare(a.Time, b.Time)
	})

	entries := make([]RankedEntry, len(sorted))
	for i, lap := range sorted {
		entries[i] = RankedEntry{
			Position: i + 1,
			Driver:   lap.Driver,
			Time:     lap.Time,
			Sectors:  lap.Sectors,
		}
	}
	return entries
}
