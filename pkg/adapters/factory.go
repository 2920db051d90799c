package adapters

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Sources bundles the adapters a predictor needs. Telemetry is optional and
// nil when no telemetry URL is configured.
type Sources struct {
	Roster    *RosterAdapter
	Schedule  *ScheduleAdapter
	Sessions  *LapsAdapter
	Telemetry *TelemetryAdapter
}

// SetHTTPClient makes every adapter use cli.
func (s *Sources) SetHTTPClient(cli *http.Client) {
	s.Roster.HTTPClient = cli
	s.Schedule.HTTPClient = cli
	s.Sessions.HTTPClient = cli
	if s.Telemetry != nil {
		s.Telemetry.HTTPClient = cli
	}
}

// New creates the data sources based on kind and a generic configuration map.
// This is the central extension point for adding new source types.
//
// Supported kinds:
//   - "ergast": roster and schedule default to the public Ergast-compatible API
//   - "http":   every URL and path must be configured explicitly
//
// Recognized keys: rosterUrl, rosterPath, scheduleUrl, schedulePath,
// sessionUrl, recordsPath, driverField, sector1Field, sector2Field,
// sector3Field, accurateField, telemetryUrl, distancePath, deltaPath,
// referencePath, headers (JSON object), templateVars (JSON object).
//
// sessionUrl is required for every kind.
func New(kind string, config map[string]string) (*Sources, error) {
	switch kind {
	case "ergast":
		return newSources(config, true)
	case "http":
		return newSources(config, false)
	default:
		return nil, fmt.Errorf("unknown source kind: %s (must be ergast or http)", kind)
	}
}

func newSources(config map[string]string, ergastDefaults bool) (*Sources, error) {
	var headers map[string]string
	if headersJSON := config["headers"]; headersJSON != "" {
		if err := json.Unmarshal([]byte(headersJSON), &headers); err != nil {
			return nil, fmt.Errorf("invalid 'headers' JSON: %w", err)
		}
	}

	var templateVars map[string]string
	if varsJSON := config["templateVars"]; varsJSON != "" {
		if err := json.Unmarshal([]byte(varsJSON), &templateVars); err != nil {
			return nil, fmt.Errorf("invalid 'templateVars' JSON: %w", err)
		}
	}

	source := func(url string) HTTPSource {
		return HTTPSource{URL: url, Headers: headers, TemplateVars: templateVars}
	}

	rosterURL, rosterPath := config["rosterUrl"], config["rosterPath"]
	scheduleURL, schedulePath := config["scheduleUrl"], config["schedulePath"]
	if ergastDefaults {
		rosterURL = withDefault(rosterURL, DefaultRosterURL)
		rosterPath = withDefault(rosterPath, DefaultRosterPath)
		scheduleURL = withDefault(scheduleURL, DefaultScheduleURL)
		schedulePath = withDefault(schedulePath, DefaultSchedulePath)
	}

	if rosterURL == "" || rosterPath == "" {
		return nil, fmt.Errorf("source requires 'rosterUrl' and 'rosterPath' config")
	}
	if scheduleURL == "" || schedulePath == "" {
		return nil, fmt.Errorf("source requires 'scheduleUrl' and 'schedulePath' config")
	}

	sessionURL := config["sessionUrl"]
	if sessionURL == "" {
		return nil, fmt.Errorf("source requires 'sessionUrl' config")
	}

	s := &Sources{
		Roster:   &RosterAdapter{HTTPSource: source(rosterURL), Path: rosterPath},
		Schedule: &ScheduleAdapter{HTTPSource: source(scheduleURL), Path: schedulePath},
		Sessions: &LapsAdapter{
			HTTPSource:    source(sessionURL),
			RecordsPath:   config["recordsPath"],
			DriverField:   config["driverField"],
			SectorFields:  [3]string{config["sector1Field"], config["sector2Field"], config["sector3Field"]},
			AccurateField: config["accurateField"],
		},
	}

	if telemetryURL := config["telemetryUrl"]; telemetryURL != "" {
		s.Telemetry = &TelemetryAdapter{
			HTTPSource:    source(telemetryURL),
			DistancePath:  withDefault(config["distancePath"], "points.#.distance"),
			DeltaPath:     withDefault(config["deltaPath"], "points.#.delta"),
			ReferencePath: config["referencePath"],
		}
	}

	return s, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
