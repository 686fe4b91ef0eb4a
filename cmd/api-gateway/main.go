package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/teftar/api/app"
	"github.com/teftar/api/config"
	"github.com/teftar/api/handlers"
	"github.com/teftar/api/internal/observability"
	"github.com/teftar/api/routes"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "api-gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New(ctx)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	tracer, err := observability.InitTracer(ctx, tracingConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	opts := []app.Option{app.WithTracer(tracer)}
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics()
		opts = append(opts, app.WithMetrics(metrics))
	}

	deps, err := app.NewDependencies(ctx, cfg, logger, opts...)
	if err != nil {
		logger.Error("failed to initialize dependencies", zap.Error(err))
		return err
	}

	servers := []*http.Server{newServer(cfg.Server, routes.SetupRoutes(deps))}
	if metrics != nil {
		servers = append(servers, newMetricsServer(cfg.Server.Host, cfg.Observability.MetricsPort, metrics))
	}

	logger.Info("starting api-gateway",
		zap.String("environment", cfg.Environment),
		zap.String("addr", servers[0].Addr),
		zap.Bool("metrics", metrics != nil),
		zap.Bool("tracing", cfg.Observability.TracingEnabled))

	serveErr := serve(ctx, logger, cfg.Server.ShutdownTimeout, servers...)

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := deps.Close(closeCtx); err != nil {
		logger.Error("failed to close dependencies", zap.Error(err))
	}

	return serveErr
}

// tracingConfig exports over plaintext everywhere except production
func tracingConfig(cfg *config.Config) observability.TracingConfig {
	return observability.TracingConfig{
		ServiceName:    "teftar-api",
		ServiceVersion: handlers.ServiceVersion,
		Environment:    cfg.Environment,
		Enabled:        cfg.Observability.TracingEnabled,
		Endpoint:       cfg.Observability.TracingEndpoint,
		SampleRate:     cfg.Observability.TracingSampleRate,
		Insecure:       !cfg.IsProduction(),
	}
}

func newServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

// newMetricsServer exposes /metrics on its own port, away from the public API
func newMetricsServer(host string, port int, metrics *observability.Metrics) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler())

	return &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// serve runs every server until ctx is cancelled or one of them fails, then
// shuts all of them down within shutdownTimeout.
func serve(ctx context.Context, logger *zap.Logger, shutdownTimeout time.Duration, servers ...*http.Server) error {
	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("server on %s failed: %w", srv.Addr, err)
			}
		}(srv)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr = <-errCh:
		logger.Error("server error, shutting down", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", zap.String("addr", srv.Addr), zap.Error(err))
			serveErr = errors.Join(serveErr, err)
		}
	}

	logger.Info("server stopped")
	return serveErr
}
