// Package router configures HTTP routes for the predictor's HTTP API.
//
// Routes configured:
//   - GET  /prediction?season=<year>&race=<name>[&format=json|text|xlsx]
//   - GET  /reference/drivers?season=<year>
//   - GET  /reference/races?season=<year>
//   - POST /reference/refresh?season=<year>
//   - GET  /telemetry/delta?season=<year>&race=<name>&session=<kind>&driver=<code>
//   - GET  /healthz - Health check endpoint
//   - GET  /metrics - Prometheus metrics endpoint
//
// The race parameter accepts an event name ("Bahrain Grand Prix") or just the
// country ("Bahrain"). Errors are JSON {"error": "..."}: 400 for bad
// parameters, 404 for unknown races or unpublished sessions, 503 when the
// reference data source cannot be reached.
package router

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HatiCode/gridcast/pkg/adapters"
	"github.com/HatiCode/gridcast/pkg/httpx"
	"github.com/HatiCode/gridcast/pkg/reference"
	"github.com/HatiCode/gridcast/pkg/report"
	"github.com/HatiCode/gridcast/pkg/storage"
	"github.com/HatiCode/gridcast/pkg/timing"
)

// Predictor runs one prediction.
type Predictor interface {
	Predict(ctx context.Context, season int, race timing.Race) (*report.Prediction, error)
}

// Reference serves and refreshes season reference data.
type Reference interface {
	GetDrivers(ctx context.Context, season int) ([]timing.Driver, error)
	GetRaces(ctx context.Context, season int) ([]timing.Race, error)
	Refresh(ctx context.Context, season int) (storage.Snapshot, error)
}

// Deps are the collaborators of the HTTP API.
type Deps struct {
	Predictor Predictor
	Reference Reference
	// Telemetry is optional; without it /telemetry/delta answers 501.
	Telemetry adapters.TelemetrySource
	// Gatherer defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// Health, if set, backs /healthz.
	Health func(ctx context.Context) error
	// Timeout bounds each request; 0 means no extra bound.
	Timeout time.Duration
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SetupRoutes configures HTTP endpoints for the predictor.
func SetupRoutes(deps Deps, logger *slog.Logger) *http.ServeMux {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	h := &handlers{deps: deps, logger: logger}
	mux := http.NewServeMux()

	if deps.Health != nil {
		mux.Handle("GET /healthz", httpx.HealthHandlerWithCheck(deps.Health))
	} else {
		mux.Handle("GET /healthz", httpx.HealthHandler())
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /prediction", h.prediction)
	mux.HandleFunc("GET /reference/drivers", h.drivers)
	mux.HandleFunc("GET /reference/races", h.races)
	mux.HandleFunc("POST /reference/refresh", h.refresh)
	mux.HandleFunc("GET /telemetry/delta", h.delta)

	return mux
}

type handlers struct {
	deps   Deps
	logger *slog.Logger
}

func (h *handlers) context(r *http.Request) (context.Context, context.CancelFunc) {
	if h.deps.Timeout > 0 {
		return context.WithTimeout(r.Context(), h.deps.Timeout)
	}
	return context.WithCancel(r.Context())
}

// prediction handles GET /prediction.
func (h *handlers) prediction(w http.ResponseWriter, r *http.Request) {
	season, ok := seasonParam(w, r)
	if !ok {
		return
	}
	race, ok := raceParam(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "text" && format != "xlsx" {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "format must be json, text or xlsx")
		return
	}

	ctx, cancel := h.context(r)
	defer cancel()

	p, err := h.deps.Predictor.Predict(ctx, season, race)
	if err != nil {
		h.writeError(w, "predict", err)
		return
	}

	switch format {
	case "text":
		var buf bytes.Buffer
		if err := report.WriteText(&buf, p.Entries); err != nil {
			h.writeError(w, "render text", err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	case "xlsx":
		var buf bytes.Buffer
		if err := report.WriteXLSX(&buf, p); err != nil {
			h.writeError(w, "render xlsx", err)
			return
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", xlsxFilename(p)))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	default:
		if err := httpx.WriteJSON(w, http.StatusOK, p); err != nil {
			h.logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// drivers handles GET /reference/drivers.
func (h *handlers) drivers(w http.ResponseWriter, r *http.Request) {
	season, ok := seasonParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.context(r)
	defer cancel()

	drivers, err := h.deps.Reference.GetDrivers(ctx, season)
	if err != nil {
		h.writeError(w, "get drivers", err)
		return
	}

	h.writeJSON(w, map[string]any{"season": season, "drivers": drivers})
}

// races handles GET /reference/races.
func (h *handlers) races(w http.ResponseWriter, r *http.Request) {
	season, ok := seasonParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.context(r)
	defer cancel()

	races, err := h.deps.Reference.GetRaces(ctx, season)
	if err != nil {
		h.writeError(w, "get races", err)
		return
	}

	h.writeJSON(w, map[string]any{"season": season, "races": races})
}

// refresh handles POST /reference/refresh.
func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	season, ok := seasonParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.context(r)
	defer cancel()

	snap, err := h.deps.Reference.Refresh(ctx, season)
	if err != nil {
		h.writeError(w, "refresh reference", err)
		return
	}

	h.writeJSON(w, snap)
}

type deltaPoint struct {
	Distance float64 `json:"distance"`
	Delta    float64 `json:"delta"`
}

type deltaResponse struct {
	Season    int           `json:"season"`
	Race      timing.Race   `json:"race"`
	Session   string        `json:"session"`
	Driver    timing.Driver `json:"driver"`
	Reference timing.Driver `json:"reference,omitempty"`
	Points    []deltaPoint  `json:"points"`
}

// delta handles GET /telemetry/delta.
func (h *handlers) delta(w http.ResponseWriter, r *http.Request) {
	if h.deps.Telemetry == nil {
		httpx.WriteErrorMessage(w, http.StatusNotImplemented, "telemetry source not configured")
		return
	}

	season, ok := seasonParam(w, r)
	if !ok {
		return
	}
	race, ok := raceParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	kind, err := timing.ParseSessionKind(q.Get("session"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}
	driver := timing.Driver(strings.ToUpper(strings.TrimSpace(q.Get("driver"))))
	if driver == "" {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "driver parameter required")
		return
	}

	ctx, cancel := h.context(r)
	defer cancel()

	series, err := h.deps.Telemetry.DeltaTime(ctx, season, race, kind, driver)
	if err != nil {
		h.writeError(w, "delta time", err)
		return
	}

	resp := deltaResponse{
		Season:    season,
		Race:      race,
		Session:   kind.String(),
		Driver:    series.Driver,
		Reference: series.Reference,
		Points:    make([]deltaPoint, len(series.Points)),
	}
	for i, pt := range series.Points {
		resp.Points[i] = deltaPoint{Distance: pt.Distance, Delta: pt.Delta.Seconds()}
	}

	h.writeJSON(w, resp)
}

func (h *handlers) writeJSON(w http.ResponseWriter, v any) {
	if err := httpx.WriteJSON(w, http.StatusOK, v); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

// writeError maps domain errors to HTTP status codes.
func (h *handlers) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, reference.ErrRemoteUnavailable):
		h.logger.Warn("reference source unavailable", "op", op, "error", err)
		httpx.WriteErrorMessage(w, http.StatusServiceUnavailable,
			"reference data source unavailable, check connectivity to the roster and schedule API and retry")
	case errors.Is(err, reference.ErrUnknownRace), errors.Is(err, adapters.ErrNoSessionData):
		httpx.WriteError(w, http.StatusNotFound, err)
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteErrorMessage(w, http.StatusGatewayTimeout, "request timed out")
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

func seasonParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("season")
	if raw == "" {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "season parameter required")
		return 0, false
	}
	season, err := strconv.Atoi(raw)
	if err != nil || season < 1950 || season > 9999 {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("invalid season %q", raw))
		return 0, false
	}
	return season, true
}

func raceParam(w http.ResponseWriter, r *http.Request) (timing.Race, bool) {
	race := timing.ParseRace(r.URL.Query().Get("race"))
	if race == "" {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "race parameter required")
		return "", false
	}
	return race, true
}

func xlsxFilename(p *report.Prediction) string {
	slug := strings.ToLower(strings.ReplaceAll(string(p.Race), " ", "-"))
	return fmt.Sprintf("prediction-%d-%s.xlsx", p.Season, slug)
}
