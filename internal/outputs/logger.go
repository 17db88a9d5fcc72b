package outputs

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// Logger prints metric reports. In json format every report is written as
// one raw JSON line to stdout; otherwise it is logged through zap.
type Logger struct {
	logger *zap.Logger
	config *config.LoggingConfig

	mu  sync.Mutex
	out io.Writer
}

// NewLogger creates a report logger
func NewLogger(cfg *config.LoggingConfig, logger *zap.Logger) (*Logger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{
		logger: logger,
		config: cfg,
		out:    os.Stdout,
	}, nil
}

// Write outputs one report
func (l *Logger) Write(report *models.MetricReport) error {
	if l.config.Format == "json" {
		data, err := json.Marshal(report)
		if err != nil {
			return err
		}
		data = append(data, '\n')

		l.mu.Lock()
		defer l.mu.Unlock()
		_, err = l.out.Write(data)
		return err
	}

	l.logger.Info("metric_report",
		zap.String("site", report.SiteLabel()),
		zap.String("visit_id", report.VisitID),
		zap.String("metric", string(report.Metric.Name)),
		zap.Float64("value_ms", report.Metric.Value),
		zap.Float64("delta_ms", report.Metric.Delta),
		zap.Bool("final", report.Metric.IsFinal),
	)

	return nil
}

// Name returns the output module name
func (l *Logger) Name() string {
	return "logger"
}
