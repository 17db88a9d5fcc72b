package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/browser"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/logging"
)

var version = "2.0.0"

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:     "monitor",
	Short:   "Page-load performance monitor",
	Version: version,
	Long: `Page Performance Monitor visits a list of sites in a real headless browser
and reports page-load metrics for every visit: time to first byte, first
contentful paint, DOM processing time, window load handler time and
resource network time.

Reports go to the configured outputs (JSON log, Prometheus, Elasticsearch,
SNMP, SQLite) or are posted to a remote ingest endpoint.`,
	SilenceUsage: true,
	RunE:         runMonitor,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Visit the configured sites continuously (default)",
	RunE:  runMonitor,
}

var visitCmd = &cobra.Command{
	Use:   "visit <url>",
	Short: "Visit one URL and print its metric reports",
	Args:  cobra.ExactArgs(1),
	RunE:  runVisit,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Only receive reports posted by other monitors",
	RunE:  runIngest,
}

func init() {
	browser.Version = version

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("CONFIG_FILE"), "Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	visitCmd.Flags().Int("timeout", 30, "Navigation timeout in seconds")
	visitCmd.Flags().Int("settle", 2, "Seconds to stay on the page after load")

	rootCmd.AddCommand(runCmd, visitCmd, ingestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the root logger
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
		if err := config.Validate(cfg); err != nil {
			return nil, nil, err
		}
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return cfg, logger.With(zap.String("version", version)), nil
}

func printBanner() {
	fmt.Fprintln(os.Stderr, "╔════════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(os.Stderr, "║  Page Performance Monitor                                      ║")
	fmt.Fprintf(os.Stderr, "║  Version: %-52s ║\n", version)
	fmt.Fprintln(os.Stderr, "║  Real page-load timings from a real browser                    ║")
	fmt.Fprintln(os.Stderr, "╚════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(os.Stderr)
}
