package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/browser"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/logging"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/metrics"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/outputs"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/transport"
)

func runVisit(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logging.Flush(logger)

	timeout, _ := cmd.Flags().GetInt("timeout")
	settle, _ := cmd.Flags().GetInt("settle")

	site := models.SiteDefinition{
		URL:                args[0],
		TimeoutSeconds:     timeout,
		SettleSeconds:      settle,
		WaitForNetworkIdle: true,
	}

	// One-off visits always print JSON lines and never leave the process
	dispatcher := metrics.NewDispatcher(logger)
	reports, err := outputs.NewLogger(&config.LoggingConfig{Level: cfg.Logging.Level, Format: "json"}, logger)
	if err != nil {
		return err
	}
	dispatcher.RegisterOutput(reports)
	collector := metrics.NewCollector(cfg.General.CacheSize, dispatcher)

	ctrl, err := browser.NewController(&cfg.Browser, transport.NewLocal(collector), config.ReportingModeLocal, logger.Named("browser"))
	if err != nil {
		return err
	}
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := ctrl.Visit(ctx, site)
	if err != nil {
		return fmt.Errorf("visit failed: %w", err)
	}

	if result.Error != nil {
		logger.Warn("page failed to load",
			zap.String("error_type", result.Error.ErrorType),
			zap.String("error", result.Error.ErrorMessage),
		)
	}

	fmt.Fprintf(os.Stderr, "\n%s (%d ms)\n", result.Site.URL, result.TotalDurationMs)
	for _, name := range models.MetricNames {
		if m, ok := result.Final(name); ok {
			fmt.Fprintf(os.Stderr, "  %-5s %10.1f ms\n", name, m.Value)
		} else {
			fmt.Fprintf(os.Stderr, "  %-5s %13s\n", name, "-")
		}
	}

	if !result.Status.Success {
		return fmt.Errorf("page failed to load")
	}
	return nil
}
