package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/HatiCode/gridcast/pkg/timing"
)

// LapsAdapter fetches the per-lap timing of one session.
//
// RecordsPath selects the array of lap records; every field path is then
// evaluated against a single record, so a record missing a field never shifts
// the others. Sector values may be numbers (seconds), lap-time strings
// ("0:31.234", "31.234", "31.234s") or null for an uncompleted sector.
//
// Example response with the default paths:
//
//	{"laps": [
//	  {"Driver": "VER", "Sector1Time": 31.2, "Sector2Time": 40.1, "Sector3Time": null, "IsAccurate": false}
//	]}
type LapsAdapter struct {
	HTTPSource

	RecordsPath   string
	DriverField   string
	SectorFields  [3]string
	AccurateField string
}

func (a *LapsAdapter) Name() string { return "laps" }

// Laps implements SessionSource. A 404 from the endpoint is reported as
// ErrNoSessionData; an empty record array is a published session without laps.
func (a *LapsAdapter) Laps(ctx context.Context, season int, race timing.Race, kind timing.SessionKind) ([]timing.Sample, error) {
	req := request{Season: season, Race: race, Session: kind}

	body, err := a.fetch(ctx, req)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("%d %s %s: %w", season, race, kind, ErrNoSessionData)
		}
		return nil, fmt.Errorf("%d %s %s: %w", season, race, kind, err)
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%d %s %s: response is not valid JSON", season, race, kind)
	}

	records := gjson.GetBytes(body, a.recordsPath())
	if !records.Exists() || records.Type == gjson.Null {
		return nil, fmt.Errorf("%d %s %s: %w", season, race, kind, ErrNoSessionData)
	}
	if !records.IsArray() {
		return nil, fmt.Errorf("%d %s %s: records path %q is not an array", season, race, kind, a.recordsPath())
	}

	fields := a.sectorFields()
	samples := make([]timing.Sample, 0, len(records.Array()))
	for i, rec := range records.Array() {
		driver := strings.ToUpper(strings.TrimSpace(rec.Get(a.driverField()).String()))
		if driver == "" {
			continue
		}

		s := timing.Sample{
			Driver:   timing.Driver(driver),
			Accurate: rec.Get(a.accurateField()).Bool(),
		}
		for j, f := range fields {
			sector, err := parseSector(rec.Get(f))
			if err != nil {
				return nil, fmt.Errorf("record %d sector %d: %w", i, j+1, err)
			}
			s.Sectors[j] = sector
		}
		samples = append(samples, s)
	}

	return samples, nil
}

func parseSector(v gjson.Result) (timing.Sector, error) {
	switch v.Type {
	case gjson.Number:
		if v.Float() <= 0 {
			return timing.Sector{}, nil
		}
		return timing.SectorTime(timing.FromSeconds(v.Float()).Duration()), nil
	case gjson.String:
		s := strings.TrimSpace(v.String())
		if s == "" || strings.EqualFold(s, "NaT") {
			return timing.Sector{}, nil
		}
		lt, err := timing.ParseLapTime(s)
		if err != nil {
			return timing.Sector{}, err
		}
		return timing.SectorTime(lt.Duration()), nil
	default:
		return timing.Sector{}, nil
	}
}

func (a *LapsAdapter) recordsPath() string {
	if a.RecordsPath == "" {
		return "laps"
	}
	return a.RecordsPath
}

func (a *LapsAdapter) driverField() string {
	if a.DriverField == "" {
		return "Driver"
	}
	return a.DriverField
}

func (a *LapsAdapter) accurateField() string {
	if a.AccurateField == "" {
		return "IsAccurate"
	}
	return a.AccurateField
}

func (a *LapsAdapter) sectorFields() [3]string {
	fields := a.SectorFields
	for i := range fields {
		if fields[i] == "" {
			fields[i] = fmt.Sprintf("Sector%dTime", i+1)
		}
	}
	return fields
}
