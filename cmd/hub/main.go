package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hindsight/hub/internal/api/http"
	"github.com/hindsight/hub/internal/config"
	"github.com/hindsight/hub/internal/hub"
	"github.com/hindsight/hub/internal/logger"
	"github.com/hindsight/hub/internal/metrics"
	"github.com/hindsight/hub/internal/seed"
	"github.com/hindsight/hub/internal/telemetry"
	"github.com/hindsight/hub/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(&logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		Rotation:   cfg.Logging.Rotation,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	log := logger.WithComponent("main")
	log.Info().Msg(version.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Operational tracing of the hub itself. Exported spans go to an
	// external collector, never back into the hub's own ingest.
	telemetryProvider, err := telemetry.NewProvider(telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "hindsight-hub",
		ServiceVersion: version.Get().Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		ExporterType:   cfg.Telemetry.Exporter,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	var traceMetrics *metrics.TraceMetrics
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector()
		traceMetrics = metrics.NewTraceMetrics(collector)
		metricsServer = metrics.NewServer(cfg.Metrics.Addr, collector.GetRegistry())
		if err := metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	h := hub.New(hub.Config{
		TTL:              cfg.Hub.TraceTTL,
		SweepInterval:    cfg.Hub.SweepInterval,
		DiscoveryTimeout: cfg.Hub.DiscoveryTimeout,
		SubscriberBuffer: cfg.Hub.SubscriberBuffer,
	}, traceMetrics)

	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hub: %w", err)
	}

	if cfg.Hub.SeedDemo {
		seed.Load(h)
	}

	httpServer := http.NewServer(cfg.Server.HTTPAddr, h, cfg.Server.MaxBodyBytes)
	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	log.Info().
		Str("http_addr", cfg.Server.HTTPAddr).
		Dur("trace_ttl", cfg.Hub.TraceTTL).
		Msg("Hub is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := h.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Hub shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Metrics server shutdown failed")
		}
	}
	if err := telemetryProvider.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Telemetry shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
	return nil
}
