package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nainya/mementod/internal/config"
	"github.com/nainya/mementod/internal/logger"
	"github.com/nainya/mementod/internal/metrics"
	"github.com/nainya/mementod/internal/server"
	"github.com/nainya/mementod/pkg/snapshot"
)

const statsInterval = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Memento HTTP, gRPC and observability servers",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := manager.Get()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, catalog, err := openCatalog(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	svc := server.NewService(catalog, m, log, cfg.Prefix())
	httpSrv := server.NewHTTPServer(svc, m, log, server.HTTPConfig{
		Port:            cfg.HTTPPort,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerSec: cfg.RateLimitPerSec,
		RateLimitBurst:  cfg.RateLimitBurst,
	})
	grpcSrv := server.NewGrpcServer(svc, m, log, cfg.GrpcPort)
	obs := server.NewObservabilityServer(cfg.MetricsPort, reg, store.Ping, log)

	manager.Watch(func(c *config.Config) {
		logger.SetLevel(c.LogLevel)
		log.Info("Configuration reloaded").Str("log_level", c.LogLevel).Send()
	}, func(err error) {
		log.Warn("Ignoring invalid configuration").Err(err).Send()
	})

	log.LogServerStart(cfg.HTTPPort, cfg.GrpcPort, cfg.DatabasePath)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpSrv.Start)
	g.Go(grpcSrv.Start)
	g.Go(obs.Start)
	g.Go(func() error {
		m.RunUptime(gctx, 10*time.Second)
		return nil
	})
	g.Go(func() error {
		trackCatalogStats(gctx, store, m)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.LogServerShutdown()

		sctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
		defer cancel()
		return errors.Join(
			httpSrv.Shutdown(sctx),
			grpcSrv.Shutdown(sctx),
			obs.Shutdown(sctx),
		)
	})

	return g.Wait()
}

// trackCatalogStats refreshes the catalog size gauges until ctx is done
func trackCatalogStats(ctx context.Context, store *snapshot.Store, m *metrics.Metrics) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		st, err := store.Stats(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("Failed to read catalog stats").Err(err).Send()
			}
		} else {
			m.UpdateCatalogStats(st.Snapshots, st.Resources)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
