package adapters

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/HatiCode/gridcast/pkg/timing"
)

// TelemetryAdapter fetches a pre-aligned delta series from a telemetry
// service. Alignment of the two laps on a common distance axis happens
// remotely; this adapter only extracts the two parallel arrays.
//
// Example configuration:
//
//	adapter := &TelemetryAdapter{
//	    HTTPSource:    HTTPSource{URL: "http://telemetry:8000/{{.Season}}/{{.Race}}/{{.SessionCode}}/{{.Driver}}/delta"},
//	    DistancePath:  "points.#.distance",
//	    DeltaPath:     "points.#.delta",
//	    ReferencePath: "reference",
//	}
type TelemetryAdapter struct {
	HTTPSource

	DistancePath string
	// DeltaPath values are seconds.
	DeltaPath     string
	ReferencePath string
}

func (a *TelemetryAdapter) Name() string { return "telemetry" }

// DeltaTime implements TelemetrySource.
func (a *TelemetryAdapter) DeltaTime(ctx context.Context, season int, race timing.Race, kind timing.SessionKind, driver timing.Driver) (DeltaSeries, error) {
	if a.DistancePath == "" || a.DeltaPath == "" {
		return DeltaSeries{}, errors.New("telemetry adapter: DistancePath and DeltaPath are required")
	}

	req := request{Season: season, Race: race, Session: kind, Driver: driver}
	body, err := a.fetch(ctx, req)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return DeltaSeries{}, fmt.Errorf("telemetry %s: %w", driver, ErrNoSessionData)
		}
		return DeltaSeries{}, fmt.Errorf("telemetry %s: %w", driver, err)
	}

	distances := gjson.GetBytes(body, a.DistancePath)
	deltas := gjson.GetBytes(body, a.DeltaPath)

	if !distances.Exists() {
		return DeltaSeries{}, fmt.Errorf("distance path %q not found in response", a.DistancePath)
	}
	if !deltas.Exists() {
		return DeltaSeries{}, fmt.Errorf("delta path %q not found in response", a.DeltaPath)
	}

	distArray := distances.Array()
	deltaArray := deltas.Array()
	if len(distArray) != len(deltaArray) {
		return DeltaSeries{}, fmt.Errorf("distance count (%d) != delta count (%d)", len(distArray), len(deltaArray))
	}

	series := DeltaSeries{
		Driver: driver,
		Points: make([]DeltaPoint, len(distArray)),
	}
	if a.ReferencePath != "" {
		series.Reference = timing.Driver(gjson.GetBytes(body, a.ReferencePath).String())
	}

	for i := range distArray {
		series.Points[i] = DeltaPoint{
			Distance: distArray[i].Float(),
			Delta:    timing.FromSeconds(deltaArray[i].Float()).Duration(),
		}
	}

	return series, nil
}
