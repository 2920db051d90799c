// Package report renders a predicted qualifying order for people: as the
// plain tab-separated table printed by the command line, and as an XLSX
// workbook. The JSON form is the Prediction struct itself.
package report

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/HatiCode/gridcast/pkg/prediction"
	"github.com/HatiCode/gridcast/pkg/timing"
)

// Prediction is the outcome of one predict run.
type Prediction struct {
	Season      int                      `json:"season"`
	Race        timing.Race              `json:"race"`
	GeneratedAt time.Time                `json:"generatedAt"`
	Entries     []prediction.RankedEntry `json:"entries"`
	// Excluded maps drivers without a lap to the reason, e.g. "incomplete".
	Excluded map[timing.Driver]string `json:"excluded,omitempty"`
	// SessionSamples counts the samples loaded per practice session.
	SessionSamples [3]int `json:"sessionSamples"`
}

// New builds a Prediction from a synthesis result.
func New(season int, race timing.Race, synth prediction.Synthesis, samples [3]int, at time.Time) *Prediction {
	p := &Prediction{
		Season:         season,
		Race:           race,
		GeneratedAt:    at,
		Entries:        prediction.Rank(synth.Laps),
		SessionSamples: samples,
	}
	if len(synth.Excluded) > 0 {
		p.Excluded = make(map[timing.Driver]string, len(synth.Excluded))
		for d, reason := range synth.Excluded {
			p.Excluded[d] = reason.String()
		}
	}
	return p
}

// ExcludedDrivers returns the excluded drivers sorted by code.
func (p *Prediction) ExcludedDrivers() []timing.Driver {
	return slices.Sorted(maps.Keys(p.Excluded))
}

// Gap returns the time of entry i behind the first entry.
func (p *Prediction) Gap(i int) time.Duration {
	if i <= 0 || i >= len(p.Entries) {
		return 0
	}
	return p.Entries[i].Time.Duration() - p.Entries[0].Time.Duration()
}

// WriteText writes one line per entry, "#<position>\t<driver>\t<m:ss.mmm>".
func WriteText(w io.Writer, entries []prediction.RankedEntry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := fmt.Fprintf(bw, "#%d\t%s\t%s\n", e.Position, e.Driver, e.Time); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// formatGap renders a gap as "+s.mmm", truncated to milliseconds.
func formatGap(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("+%d.%03d", ms/1000, ms%1000)
}
