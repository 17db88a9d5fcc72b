package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/metrics"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/outputs"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/transport"
)

// buildDispatcher registers the report logger and every enabled output
func buildDispatcher(cfg *config.Config, logger *zap.Logger) (*metrics.Dispatcher, error) {
	dispatcher := metrics.NewDispatcher(logger.Named("dispatcher"))

	reportLogger, err := outputs.NewLogger(&cfg.Logging, logger.Named("reports"))
	if err != nil {
		return nil, fmt.Errorf("failed to create report logger: %w", err)
	}
	dispatcher.RegisterOutput(reportLogger)

	esOutput, err := outputs.NewElasticsearchOutput(&cfg.Elasticsearch, logger.Named("elasticsearch"))
	if err != nil {
		dispatcher.Close()
		return nil, fmt.Errorf("failed to create Elasticsearch output: %w", err)
	}
	if esOutput != nil {
		dispatcher.RegisterOutput(esOutput)
	}

	promOutput, err := outputs.NewPrometheusOutput(&cfg.Prometheus, logger.Named("prometheus"))
	if err != nil {
		dispatcher.Close()
		return nil, fmt.Errorf("failed to create Prometheus output: %w", err)
	}
	if promOutput != nil {
		dispatcher.RegisterOutput(promOutput)
	}

	snmpOutput, err := outputs.NewSNMPOutput(&cfg.SNMP, logger.Named("snmp"))
	if err != nil {
		dispatcher.Close()
		return nil, fmt.Errorf("failed to create SNMP output: %w", err)
	}
	if snmpOutput != nil {
		dispatcher.RegisterOutput(snmpOutput)
	}

	sqliteOutput, err := outputs.NewSQLiteOutput(&cfg.SQLite, logger.Named("sqlite"))
	if err != nil {
		dispatcher.Close()
		return nil, fmt.Errorf("failed to create SQLite output: %w", err)
	}
	if sqliteOutput != nil {
		dispatcher.RegisterOutput(sqliteOutput)
	}

	logger.Info("outputs enabled", zap.Strings("outputs", dispatcher.Outputs()))
	return dispatcher, nil
}

// buildSink picks where the browser's reports go. The returned func
// waits for in-flight deliveries.
func buildSink(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (transport.Sink, func(), error) {
	switch cfg.Reporting.Mode {
	case config.ReportingModeLocal:
		return transport.NewLocal(collector), func() {}, nil

	case config.ReportingModeHTTP:
		sink := transport.NewHTTP(transport.HTTPConfig{
			Timeout:       cfg.Reporting.Timeout,
			RatePerSecond: cfg.Reporting.RatePerSecond,
			Burst:         cfg.Reporting.Burst,
			UserAgent:     "page-performance-monitor/" + version,
		}, logger.Named("transport"))
		return sink, func() {
			if err := sink.Close(); err != nil {
				logger.Warn("error closing report transport", zap.Error(err))
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown reporting mode %q", cfg.Reporting.Mode)
	}
}
