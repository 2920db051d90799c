package adapters

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/HatiCode/gridcast/pkg/timing"
)

// Ergast-compatible defaults. The original ergast.com API is retired; the
// jolpica mirror serves the same documents.
const (
	DefaultRosterURL    = "https://api.jolpi.ca/ergast/f1/{{.Season}}/drivers.json"
	DefaultRosterPath   = "MRData.DriverTable.Drivers.#.code"
	DefaultScheduleURL  = "https://api.jolpi.ca/ergast/f1/{{.Season}}.json"
	DefaultSchedulePath = "MRData.RaceTable.Races.#.Circuit.Location.country"
)

// RosterAdapter fetches the driver codes of a season.
//
// Path is a gjson path that must resolve to an array of strings, e.g.
// "MRData.DriverTable.Drivers.#.code". Empty codes are dropped and duplicates
// keep their first position.
type RosterAdapter struct {
	HTTPSource
	Path string
}

func (a *RosterAdapter) Name() string { return "roster" }

// Drivers implements RosterSource.
func (a *RosterAdapter) Drivers(ctx context.Context, season int) ([]timing.Driver, error) {
	values, err := fetchStrings(ctx, &a.HTTPSource, request{Season: season}, a.Path)
	if err != nil {
		return nil, fmt.Errorf("roster %d: %w", season, err)
	}

	drivers := make([]timing.Driver, 0, len(values))
	for _, v := range values {
		drivers = append(drivers, timing.Driver(strings.ToUpper(v)))
	}
	return drivers, nil
}

// ScheduleAdapter fetches the event countries of a season and turns each into
// a race name ("<country> Grand Prix"). Calendar order is preserved.
//
// A country hosting two events keeps both entries, matching the upstream schedule.
type ScheduleAdapter struct {
	HTTPSource
	Path string
}

func (a *ScheduleAdapter) Name() string { return "schedule" }

// Races implements ScheduleSource.
func (a *ScheduleAdapter) Races(ctx context.Context, season int) ([]timing.Race, error) {
	result, err := fetchPath(ctx, &a.HTTPSource, request{Season: season}, a.Path)
	if err != nil {
		return nil, fmt.Errorf("schedule %d: %w", season, err)
	}

	races := make([]timing.Race, 0, len(result.Array()))
	for _, v := range result.Array() {
		if country := strings.TrimSpace(v.String()); country != "" {
			races = append(races, timing.RaceFromCountry(country))
		}
	}
	return races, nil
}

func fetchPath(ctx context.Context, src *HTTPSource, req request, path string) (gjson.Result, error) {
	if path == "" {
		return gjson.Result{}, fmt.Errorf("json path is required")
	}

	body, err := src.fetch(ctx, req)
	if err != nil {
		return gjson.Result{}, err
	}

	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("response is not valid JSON")
	}

	result := gjson.GetBytes(body, path)
	if !result.Exists() {
		return gjson.Result{}, fmt.Errorf("path %q not found in response", path)
	}
	return result, nil
}

func fetchStrings(ctx context.Context, src *HTTPSource, req request, path string) ([]string, error) {
	result, err := fetchPath(ctx, src, req, path)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	out := make([]string, 0, len(result.Array()))
	for _, v := range result.Array() {
		s := strings.TrimSpace(v.String())
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}
