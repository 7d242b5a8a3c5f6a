package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angeloszaimis/rewriting-gateway/config"
	"github.com/angeloszaimis/rewriting-gateway/internal/backend"
	"github.com/angeloszaimis/rewriting-gateway/internal/forwarder"
	"github.com/angeloszaimis/rewriting-gateway/internal/handler"
	"github.com/angeloszaimis/rewriting-gateway/internal/healthcheck"
	"github.com/angeloszaimis/rewriting-gateway/internal/httpserver"
	"github.com/angeloszaimis/rewriting-gateway/internal/metrics"
	"github.com/angeloszaimis/rewriting-gateway/internal/rewrite"
	"github.com/angeloszaimis/rewriting-gateway/internal/route"
	"github.com/angeloszaimis/rewriting-gateway/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.AddSource, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gw, err := newGateway(cfg, log)
	if err != nil {
		log.Error("Failed to build gateway", slog.Any("err", err))
		os.Exit(1)
	}

	gw.start(ctx)

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(gw), httpserver.Timeouts{
		Read:  cfg.Server.ReadTimeout,
		Write: cfg.Server.WriteTimeout,
		Idle:  cfg.Server.IdleTimeout,
	})
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		log.Info("Gateway listening",
			slog.String("addr", srv.Addr()),
			slog.Int("routes", gw.routes.Len()),
			slog.Int("rewrites", len(cfg.Rewrites)))
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting gateway", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// gateway holds everything built from the configuration.
type gateway struct {
	routes     *route.Table
	handler    *handler.GatewayHandler
	backends   *backend.Registry
	collector  *metrics.Collector
	prometheus *metrics.Prometheus
	checker    *healthcheck.Checker
}

func newGateway(cfg *config.Config, log *slog.Logger) (*gateway, error) {
	routes, err := route.NewTable(cfg.RouteEntries())
	if err != nil {
		return nil, fmt.Errorf("build route table: %w", err)
	}

	rules, err := rewrite.NewTable(cfg.RewriteRules())
	if err != nil {
		return nil, fmt.Errorf("build rewrite table: %w", err)
	}

	for _, e := range routes.Entries() {
		log.Info("Route registered",
			slog.String("prefix", e.Prefix),
			slog.String("target", e.Target))
	}
	for _, r := range rules.Rules() {
		log.Debug("Rewrite rule registered",
			slog.String("public", r.Public),
			slog.String("backend", r.Backend))
	}

	client := forwarder.NewClient(forwarder.ClientOptions{
		DialTimeout:           cfg.Upstream.DialTimeout,
		ResponseHeaderTimeout: cfg.Upstream.ResponseHeaderTimeout,
		IdleConnTimeout:       cfg.Upstream.IdleConnTimeout,
		MaxIdleConnsPerHost:   cfg.Upstream.MaxIdleConnsPerHost,
		TLSSkipVerify:         cfg.Upstream.TLSSkipVerify,
	})

	backends := backend.NewRegistry(cfg.RouteTargets())

	prom := metrics.NewPrometheus(prometheus.NewRegistry())
	collector := metrics.NewCollector(cfg.Metrics.BufferSize, prom, log)
	collector.TrackBackends(backends)

	gatewayHandler := handler.NewGatewayHandler(log, routes, forwarder.New(client),
		rewrite.NewRewriter(rules), backends, collector)

	gw := &gateway{
		routes:     routes,
		handler:    gatewayHandler,
		backends:   backends,
		collector:  collector,
		prometheus: prom,
	}

	if cfg.HealthCheck.Enabled {
		gw.checker = healthcheck.New(cfg.HealthCheck.Path, cfg.HealthCheck.Interval, log, gw.reportHealth)
	}

	return gw, nil
}

// start launches the metrics collector and, when enabled, the health probes.
// Both stop with ctx.
func (g *gateway) start(ctx context.Context) {
	g.collector.Start(ctx)

	for _, b := range g.backends.All() {
		g.reportHealth(b, b.IsHealthy())
	}

	if g.checker != nil {
		g.checker.Start(ctx, g.backends.All())
	}
}

func (g *gateway) reportHealth(b *backend.Backend, healthy bool) {
	g.collector.Emit(metrics.MetricEvent{
		Type:      metrics.EventHealthChanged,
		Timestamp: time.Now(),
		Backend:   b.String(),
		Healthy:   healthy,
	})
}
