package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/browser"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/health"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/ingest"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/logging"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/metrics"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/testloop"
)

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logging.Flush(logger)

	printBanner()
	logger.Info("loaded configuration",
		zap.Int("sites", len(cfg.Sites.List)),
		zap.Duration("inter_visit_delay", cfg.General.InterVisitDelay),
		zap.String("reporting_mode", cfg.Reporting.Mode),
		zap.String("endpoint", cfg.Reporting.Endpoint),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher, err := buildDispatcher(cfg, logger)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	collector := metrics.NewCollector(cfg.General.CacheSize, dispatcher)

	sink, closeSink, err := buildSink(cfg, collector, logger)
	if err != nil {
		return err
	}

	var ingestServer *ingest.Server
	if cfg.Ingest.Enabled {
		ingestServer = ingest.NewServer(&cfg.Ingest, collector, logger.Named("ingest"))
		ingestServer.Start()
	}

	healthServer, err := health.NewHealthServer(&health.Config{
		Enabled:       cfg.Advanced.HealthCheckEnabled,
		Port:          cfg.Advanced.HealthCheckPort,
		Path:          cfg.Advanced.HealthCheckPath,
		ListenAddress: cfg.Advanced.HealthCheckListenAddress,
	}, logger.Named("health"))
	if err != nil {
		return err
	}
	healthServer.SetReportCounter(collector.Recorded)

	browserCtrl, err := browser.NewController(&cfg.Browser, sink, cfg.Reporting.Endpoint, logger.Named("browser"))
	if err != nil {
		return err
	}

	loop, err := testloop.NewTestLoop(cfg, browserCtrl, healthServer, logger.Named("loop"))
	if err != nil {
		return err
	}

	loopCtx, cancelLoop := context.WithCancel(context.Background())
	defer cancelLoop()

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(loopCtx)
	}()

	logger.Info("page performance monitor started")

	var loopErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case loopErr = <-loopDone:
		loopDone = nil
	}

	logger.Info("shutting down gracefully")
	cancelLoop()

	if loopDone != nil {
		select {
		case loopErr = <-loopDone:
		case <-time.After(cfg.Advanced.ShutdownTimeout):
			logger.Warn("shutdown timeout exceeded waiting for visit loop")
		}
	}

	if err := browserCtrl.Close(); err != nil {
		logger.Warn("error closing browser", zap.Error(err))
	}
	closeSink()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Advanced.ShutdownTimeout)
	defer cancel()
	if ingestServer != nil {
		if err := ingestServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error closing ingest server", zap.Error(err))
		}
	}
	if err := healthServer.Close(); err != nil {
		logger.Warn("error closing health check server", zap.Error(err))
	}

	if loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		logger.Error("visit loop exited", zap.Error(loopErr))
		if errors.Is(loopErr, testloop.ErrTooManyStartFailures) {
			logging.Flush(logger)
			os.Exit(1)
		}
		return loopErr
	}

	logger.Info("shutdown complete")
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logging.Flush(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher, err := buildDispatcher(cfg, logger)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	collector := metrics.NewCollector(cfg.General.CacheSize, dispatcher)

	server := ingest.NewServer(&cfg.Ingest, collector, logger.Named("ingest"))
	server.Start()

	healthServer, err := health.NewHealthServer(&health.Config{
		Enabled:       cfg.Advanced.HealthCheckEnabled,
		Port:          cfg.Advanced.HealthCheckPort,
		Path:          cfg.Advanced.HealthCheckPath,
		ListenAddress: cfg.Advanced.HealthCheckListenAddress,
	}, logger.Named("health"))
	if err != nil {
		return err
	}
	healthServer.SetReportCounter(collector.Recorded)
	defer healthServer.Close()

	<-ctx.Done()
	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Advanced.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
