// Command predictor implements the Gridcast qualifying predictor.
//
// The predictor ranks the drivers of a race weekend by their theoretical best
// lap: the sum of each driver's best sector times over the three practice
// sessions. The season roster and calendar come from a reference cache that
// is rebuilt once per calendar year.
//
// It runs in two modes:
//   - one-shot (-once): predict one race, write it as text, JSON or XLSX, exit
//   - service: serve the HTTP API (see package router) and the gRPC service
//     gridcast.v1.Predictor (see package rpc) until SIGINT/SIGTERM
//
// Usage:
//
//	predictor -once -season=2023 -race=Bahrain
//	predictor -storage=redis -redis-addr=redis:6379 -listen=:8080
//
// Environment variables:
//
//	LISTEN          - HTTP listen address (default: :8080)
//	GRPC_LISTEN     - gRPC listen address (default: :9090, empty disables)
//	STORAGE         - Reference storage: file, memory, redis (default: file)
//	DATA_DIR        - File storage directory (default: data)
//	REDIS_ADDR      - Redis server address
//	SOURCE          - Data source kind: ergast, http (default: ergast)
//	SOURCE_*        - Data source settings, e.g. SOURCE_SESSION_URL
//	LOG_LEVEL       - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT      - Logging format: text, json (default: text)
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/HatiCode/gridcast/cmd/predictor/config"
	"github.com/HatiCode/gridcast/cmd/predictor/logger"
	"github.com/HatiCode/gridcast/cmd/predictor/metrics"
	"github.com/HatiCode/gridcast/cmd/predictor/router"
	"github.com/HatiCode/gridcast/cmd/predictor/rpc"
	"github.com/HatiCode/gridcast/pkg/adapters"
	"github.com/HatiCode/gridcast/pkg/httpx"
	"github.com/HatiCode/gridcast/pkg/reference"
	"github.com/HatiCode/gridcast/pkg/report"
	"github.com/HatiCode/gridcast/pkg/session"
	"github.com/HatiCode/gridcast/pkg/timing"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	log := logger.New(cfg)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	log.Info("starting gridcast predictor",
		"version", version,
		"once", cfg.Once,
		"storage", cfg.Storage,
		"source", cfg.Source,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	st, err := openStore(cfg, log)
	if err != nil {
		log.Error("failed to open reference storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("failed to close store", "error", err)
		}
	}()

	sources, err := adapters.New(cfg.Source, cfg.SourceConfig)
	if err != nil {
		log.Error("failed to create data sources", "error", err)
		os.Exit(1)
	}
	client, err := httpx.NewClient(cfg.SourceTLS, cfg.HTTPTimeout)
	if err != nil {
		log.Error("failed to create HTTP client", "error", err)
		os.Exit(1)
	}
	sources.SetHTTPClient(client)

	cache := reference.New(st, sources.Roster, sources.Schedule, reference.Options{
		Logger:    log,
		OnRebuild: m.RecordRebuild,
		OnHit:     m.RecordCacheHit,
	})

	loader := session.NewLoader(sources.Sessions, log)
	loader.OnFailure(m.RecordSessionFailure)

	p := NewPredictor(cache, loader, log, m)

	if cfg.Once {
		if err := runOnce(cfg, p); err != nil {
			log.Error("prediction failed", "error", err)
			os.Exit(1)
		}
		return
	}

	deps := router.Deps{
		Predictor: p,
		Reference: cache,
		Gatherer:  reg,
		Health:    st.Ping,
		Timeout:   cfg.RequestTimeout,
	}
	if sources.Telemetry != nil {
		deps.Telemetry = sources.Telemetry
	}
	if err := serve(cfg, log, deps, p, cache); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// runOnce predicts cfg.Race of cfg.Season and writes it to the configured output.
func runOnce(cfg *config.Config, p *Predictor) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancelTimeout()

	result, err := p.Predict(ctx, cfg.Season, timing.ParseRace(cfg.Race))
	if err != nil {
		if errors.Is(err, reference.ErrRemoteUnavailable) {
			return fmt.Errorf("%w (check connectivity to the roster and schedule API)", err)
		}
		return err
	}

	out, err := cfg.OpenOutput()
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}

	switch cfg.Format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(result)
	case "xlsx":
		err = report.WriteXLSX(out, result)
	default:
		err = report.WriteText(out, result.Entries)
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write %s output: %w", cfg.Format, err)
	}
	return nil
}

// serve runs the HTTP and gRPC servers until a shutdown signal or a server failure.
func serve(cfg *config.Config, log *slog.Logger, deps router.Deps, p *Predictor, cache *reference.Cache) error {
	serverTLS, err := cfg.TLS.ServerConfig()
	if err != nil {
		return fmt.Errorf("server tls: %w", err)
	}

	mux := router.SetupRoutes(deps, log)
	handler := httpx.Chain(mux, httpx.RequestIDMiddleware, httpx.RecoveryMiddleware(log), httpx.LoggingMiddleware(log))
	httpServer := httpx.NewServer(cfg.Listen, handler, log)
	if serverTLS != nil {
		httpServer.SetTLSConfig(serverTLS)
	}

	serverErr := make(chan error, 2)
	go func() {
		serverErr <- httpServer.Start()
	}()

	var grpcServer *grpc.Server
	if cfg.GRPCListen != "" {
		var opts []grpc.ServerOption
		if serverTLS != nil {
			opts = append(opts, grpc.Creds(credentials.NewTLS(serverTLS)))
		}
		grpcServer = grpc.NewServer(opts...)

		rpc.Register(grpcServer, rpc.NewServer(p, cache, log))

		healthServer := health.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		healthServer.SetServingStatus(rpc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

		reflection.Register(grpcServer)

		lis, err := net.Listen("tcp", cfg.GRPCListen)
		if err != nil {
			_ = httpServer.Stop(time.Second)
			return fmt.Errorf("grpc listen: %w", err)
		}

		go func() {
			log.Info("grpc server listening", "address", cfg.GRPCListen, "tls", serverTLS != nil)
			serverErr <- grpcServer.Serve(lis)
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig)
	case runErr = <-serverErr:
	}

	log.Info("shutting down")

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := httpServer.Stop(10 * time.Second); err != nil {
		log.Error("http server shutdown error", "error", err)
	}

	log.Info("shutdown complete")
	return runErr
}
