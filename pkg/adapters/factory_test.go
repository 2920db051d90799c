package adapters

import (
	"net/http"
	"testing"
	"time"
)

func TestNew_ErgastDefaults(t *testing.T) {
	config := map[string]string{
		"sessionUrl": "http://timing:8000/{{.Season}}/{{.Race}}/{{.SessionCode}}",
	}

	s, err := New("ergast", config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if s.Roster.URL != DefaultRosterURL || s.Roster.Path != DefaultRosterPath {
		t.Errorf("roster = %q %q, want defaults", s.Roster.URL, s.Roster.Path)
	}
	if s.Schedule.URL != DefaultScheduleURL || s.Schedule.Path != DefaultSchedulePath {
		t.Errorf("schedule = %q %q, want defaults", s.Schedule.URL, s.Schedule.Path)
	}
	if s.Sessions.URL != config["sessionUrl"] {
		t.Errorf("sessions URL = %q", s.Sessions.URL)
	}
	if s.Telemetry != nil {
		t.Error("telemetry should be nil without telemetryUrl")
	}
}

func TestNew_HTTPRequiresURLs(t *testing.T) {
	_, err := New("http", map[string]string{
		"sessionUrl": "http://timing:8000",
	})
	if err == nil {
		t.Fatal("expected error when roster config is missing")
	}
}

func TestNew_MissingSessionURL(t *testing.T) {
	if _, err := New("ergast", map[string]string{}); err == nil {
		t.Fatal("expected error when sessionUrl is missing")
	}
}

func TestNew_UnknownKind(t *testing.T) {
	if _, err := New("fastf1", map[string]string{"sessionUrl": "x"}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestNew_HeadersAndTelemetry(t *testing.T) {
	s, err := New("http", map[string]string{
		"rosterUrl":    "http://ref/{{.Season}}/drivers",
		"rosterPath":   "drivers.#.code",
		"scheduleUrl":  "http://ref/{{.Season}}/races",
		"schedulePath": "races.#.country",
		"sessionUrl":   "http://timing/{{.Season}}",
		"sector2Field": "S2",
		"telemetryUrl": "http://telemetry/{{.Driver}}",
		"headers":      `{"X-Api-Key": "{{.Key}}"}`,
		"templateVars": `{"Key": "k"}`,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if s.Sessions.SectorFields[1] != "S2" {
		t.Errorf("sector2 field = %q", s.Sessions.SectorFields[1])
	}
	if s.Sessions.Headers["X-Api-Key"] != "{{.Key}}" || s.Roster.TemplateVars["Key"] != "k" {
		t.Error("headers/templateVars not propagated")
	}
	if s.Telemetry == nil || s.Telemetry.DeltaPath != "points.#.delta" {
		t.Fatalf("telemetry = %+v", s.Telemetry)
	}

	cli := &http.Client{Timeout: time.Second}
	s.SetHTTPClient(cli)
	if s.Roster.HTTPClient != cli || s.Telemetry.HTTPClient != cli {
		t.Error("SetHTTPClient did not reach every adapter")
	}
}

func TestNew_InvalidHeadersJSON(t *testing.T) {
	_, err := New("ergast", map[string]string{
		"sessionUrl": "http://timing",
		"headers":    "{not json",
	})
	if err == nil {
		t.Fatal("expected error for invalid headers JSON")
	}
}
