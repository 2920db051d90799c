package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xuri/excelize/v2"

	"github.com/HatiCode/gridcast/pkg/adapters"
	"github.com/HatiCode/gridcast/pkg/prediction"
	"github.com/HatiCode/gridcast/pkg/reference"
	"github.com/HatiCode/gridcast/pkg/report"
	"github.com/HatiCode/gridcast/pkg/storage"
	"github.com/HatiCode/gridcast/pkg/timing"
)

type fakePredictor struct {
	gotSeason int
	gotRace   timing.Race
	err       error
}

func (f *fakePredictor) Predict(ctx context.Context, season int, race timing.Race) (*report.Prediction, error) {
	f.gotSeason, f.gotRace = season, race
	if f.err != nil {
		return nil, f.err
	}
	synth := prediction.Synthesis{Laps: []prediction.SyntheticLap{
		{Driver: "B", Time: timing.LapTime(3370 * time.Millisecond)},
		{Driver: "A", Time: timing.LapTime(3355 * time.Millisecond)},
	}}
	return report.New(season, race, synth, [3]int{4, 0, 2}, time.Date(2023, 3, 4, 0, 0, 0, 0, time.UTC)), nil
}

type fakeReference struct {
	err       error
	refreshed int
}

func (f *fakeReference) GetDrivers(ctx context.Context, season int) ([]timing.Driver, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []timing.Driver{"VER", "HAM"}, nil
}

func (f *fakeReference) GetRaces(ctx context.Context, season int) ([]timing.Race, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []timing.Race{"Bahrain Grand Prix"}, nil
}

func (f *fakeReference) Refresh(ctx context.Context, season int) (storage.Snapshot, error) {
	if f.err != nil {
		return storage.Snapshot{}, f.err
	}
	f.refreshed = season
	return storage.Snapshot{Season: season, Drivers: []timing.Driver{"VER"}, CreatedAt: time.Now()}, nil
}

type fakeTelemetry struct {
	err error
}

func (f *fakeTelemetry) DeltaTime(ctx context.Context, season int, race timing.Race, kind timing.SessionKind, driver timing.Driver) (adapters.DeltaSeries, error) {
	if f.err != nil {
		return adapters.DeltaSeries{}, f.err
	}
	return adapters.DeltaSeries{
		Driver:    driver,
		Reference: "VER",
		Points: []adapters.DeltaPoint{
			{Distance: 0, Delta: 0},
			{Distance: 1500, Delta: 250 * time.Millisecond},
		},
	}, nil
}

func newMux(p *fakePredictor, ref *fakeReference, tel adapters.TelemetrySource) *http.ServeMux {
	return SetupRoutes(Deps{
		Predictor: p,
		Reference: ref,
		Telemetry: tel,
		Gatherer:  prometheus.NewRegistry(),
		Timeout:   time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(mux http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	mux := newMux(&fakePredictor{}, &fakeReference{}, nil)
	rec := do(mux, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestHealthz_WithCheck(t *testing.T) {
	mux := SetupRoutes(Deps{
		Predictor: &fakePredictor{},
		Reference: &fakeReference{},
		Gatherer:  prometheus.NewRegistry(),
		Health:    func(context.Context) error { return errors.New("redis: connection refused") },
	}, nil)

	if rec := do(mux, http.MethodGet, "/healthz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("healthz = %d, want 503", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "gridcast_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	mux := SetupRoutes(Deps{Predictor: &fakePredictor{}, Reference: &fakeReference{}, Gatherer: reg}, nil)
	rec := do(mux, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "gridcast_test_total 1") {
		t.Errorf("metrics = %d %s", rec.Code, rec.Body.String())
	}
}

func TestPrediction_JSON(t *testing.T) {
	p := &fakePredictor{}
	mux := newMux(p, &fakeReference{}, nil)

	rec := do(mux, http.MethodGet, "/prediction?season=2023&race=Bahrain+Grand+Prix")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Season  int    `json:"season"`
		Race    string `json:"race"`
		Entries []struct {
			Position int    `json:"position"`
			Driver   string `json:"driver"`
			Time     string `json:"time"`
		} `json:"entries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Season != 2023 || body.Race != "Bahrain Grand Prix" {
		t.Errorf("body = %+v", body)
	}
	if len(body.Entries) != 2 || body.Entries[0].Driver != "A" || body.Entries[0].Time != "0:03.355" {
		t.Errorf("entries = %+v", body.Entries)
	}
}

func TestPrediction_CountryOnlyRace(t *testing.T) {
	p := &fakePredictor{}
	mux := newMux(p, &fakeReference{}, nil)

	do(mux, http.MethodGet, "/prediction?season=2023&race=Saudi+Arabia")
	if p.gotRace != "Saudi Arabia Grand Prix" {
		t.Errorf("race = %q", p.gotRace)
	}
}

func TestPrediction_Text(t *testing.T) {
	mux := newMux(&fakePredictor{}, &fakeReference{}, nil)

	rec := do(mux, http.MethodGet, "/prediction?season=2023&race=Bahrain&format=text")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if want := "#1\tA\t0:03.355\n#2\tB\t0:03.370\n"; rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestPrediction_XLSX(t *testing.T) {
	mux := newMux(&fakePredictor{}, &fakeReference{}, nil)

	rec := do(mux, http.MethodGet, "/prediction?season=2023&race=Bahrain&format=xlsx")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "prediction-2023-bahrain-grand-prix.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	f, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	if v, _ := f.GetCellValue("Prediction", "B3"); v != "A" {
		t.Errorf("B3 = %q, want A", v)
	}
}

func TestPrediction_BadParams(t *testing.T) {
	mux := newMux(&fakePredictor{}, &fakeReference{}, nil)

	tests := []struct {
		name   string
		target string
	}{
		{"missing season", "/prediction?race=Bahrain"},
		{"non-numeric season", "/prediction?season=next&race=Bahrain"},
		{"season out of range", "/prediction?season=1800&race=Bahrain"},
		{"missing race", "/prediction?season=2023"},
		{"bad format", "/prediction?season=2023&race=Bahrain&format=pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(mux, http.MethodGet, tt.target); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestPrediction_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"remote unavailable", fmt.Errorf("roster: %w", reference.ErrRemoteUnavailable), http.StatusServiceUnavailable},
		{"unknown race", fmt.Errorf("%w: \"Atlantis Grand Prix\"", reference.ErrUnknownRace), http.StatusNotFound},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"persist", reference.ErrPersist, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newMux(&fakePredictor{err: tt.err}, &fakeReference{}, nil)
			rec := do(mux, http.MethodGet, "/prediction?season=2023&race=Bahrain")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body["error"] == "" {
				t.Errorf("expected JSON error body, got %v", body)
			}
		})
	}
}

func TestReferenceEndpoints(t *testing.T) {
	ref := &fakeReference{}
	mux := newMux(&fakePredictor{}, ref, nil)

	rec := do(mux, http.MethodGet, "/reference/drivers?season=2024")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"drivers":["VER","HAM"]`) {
		t.Errorf("drivers = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(mux, http.MethodGet, "/reference/races?season=2024")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"races":["Bahrain Grand Prix"]`) {
		t.Errorf("races = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(mux, http.MethodPost, "/reference/refresh?season=2024")
	if rec.Code != http.StatusOK || ref.refreshed != 2024 {
		t.Errorf("refresh = %d, refreshed season %d", rec.Code, ref.refreshed)
	}

	if rec := do(mux, http.MethodGet, "/reference/refresh?season=2024"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET refresh = %d, want 405", rec.Code)
	}
}

func TestReferenceEndpoints_RemoteUnavailable(t *testing.T) {
	ref := &fakeReference{err: fmt.Errorf("%w: schedule: timeout", reference.ErrRemoteUnavailable)}
	mux := newMux(&fakePredictor{}, ref, nil)

	for _, target := range []string{"/reference/drivers?season=2024", "/reference/races?season=2024"} {
		if rec := do(mux, http.MethodGet, target); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s = %d, want 503", target, rec.Code)
		}
	}
	if rec := do(mux, http.MethodPost, "/reference/refresh?season=2024"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("refresh = %d, want 503", rec.Code)
	}
}

func TestTelemetryDelta(t *testing.T) {
	mux := newMux(&fakePredictor{}, &fakeReference{}, &fakeTelemetry{})

	rec := do(mux, http.MethodGet, "/telemetry/delta?season=2023&race=Bahrain&session=Q&driver=ham")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	var body deltaResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Driver != "HAM" || body.Reference != "VER" || body.Session != "Qualifying" {
		t.Errorf("body = %+v", body)
	}
	if len(body.Points) != 2 || body.Points[1].Delta != 0.25 {
		t.Errorf("points = %+v", body.Points)
	}
}

func TestTelemetryDelta_Errors(t *testing.T) {
	tests := []struct {
		name       string
		tel        adapters.TelemetrySource
		target     string
		wantStatus int
	}{
		{"not configured", nil, "/telemetry/delta?season=2023&race=Bahrain&session=Q&driver=HAM", http.StatusNotImplemented},
		{"bad session", &fakeTelemetry{}, "/telemetry/delta?season=2023&race=Bahrain&session=FP9&driver=HAM", http.StatusBadRequest},
		{"missing driver", &fakeTelemetry{}, "/telemetry/delta?season=2023&race=Bahrain&session=Q", http.StatusBadRequest},
		{"no data", &fakeTelemetry{err: adapters.ErrNoSessionData}, "/telemetry/delta?season=2023&race=Bahrain&session=R&driver=HAM", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newMux(&fakePredictor{}, &fakeReference{}, tt.tel)
			if rec := do(mux, http.MethodGet, tt.target); rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
