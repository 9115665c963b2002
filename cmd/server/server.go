package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ssungk/ehttpd/pkg/httpd"
	"github.com/ssungk/ehttpd/pkg/httpd/transport"
)

// App ties the HTTP server to its metrics endpoint and config watcher.
type App struct {
	cfg        fileConfig
	configPath string
	logger     *slog.Logger
	registry   *prometheus.Registry
	srv        *httpd.Server
}

// NewApp builds the server described by cfg.
func NewApp(cfg fileConfig, configPath string, logger *slog.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var loop httpd.EventLoop
	switch cfg.Loop {
	case loopNet:
		loop = transport.NewNetLoop()
	default:
		loop = transport.NewGnetLoop()
	}

	srv, err := httpd.NewServer(cfg.Config, loop, newRouter(logger, cfg.Response),
		httpd.WithLogger(logger),
		httpd.WithMetrics(httpd.NewMetrics(reg)),
	)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		registry:   reg,
		srv:        srv,
	}, nil
}

// Run serves until ctx is done or any component fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.srv.ListenAndServe(ctx)
	})

	if a.cfg.MetricsAddr != "" {
		metricsSrv := &http.Server{
			Addr:              a.cfg.MetricsAddr,
			Handler:           a.metricsHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			a.logger.Info("Metrics server started", "addr", a.cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	if a.configPath != "" {
		g.Go(func() error {
			return watchConfig(ctx, a.configPath, a.srv, a.logger)
		})
	}

	return g.Wait()
}

func (a *App) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	return mux
}
