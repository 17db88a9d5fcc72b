package outputs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// PrometheusOutput exposes metric reports via an HTTP scrape endpoint
type PrometheusOutput struct {
	config   *config.PrometheusConfig
	registry *prometheus.Registry
	server   *http.Server
	logger   *zap.Logger

	reportsTotal        *prometheus.CounterVec
	valueMs             *prometheus.GaugeVec
	valueHistogram      *prometheus.HistogramVec
	lastReportTimestamp *prometheus.GaugeVec
}

// NewPrometheusOutput creates the exporter and starts its HTTP server.
// It returns nil when the exporter is disabled.
func NewPrometheusOutput(cfg *config.PrometheusConfig, logger *zap.Logger) (*PrometheusOutput, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	p := newPrometheusOutput(cfg, logger)

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.Port)
	p.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		p.logger.Info("starting Prometheus exporter", zap.String("addr", addr), zap.String("path", cfg.Path))
		if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("Prometheus server error", zap.Error(err))
		}
	}()

	return p, nil
}

// newPrometheusOutput builds the metric vectors on a private registry
func newPrometheusOutput(cfg *config.PrometheusConfig, logger *zap.Logger) *PrometheusOutput {
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &PrometheusOutput{
		config:   cfg,
		registry: prometheus.NewRegistry(),
		logger:   logger,
	}

	p.reportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "page_perf_metric_reports_total",
			Help: "Total number of metric reports received",
		},
		[]string{"site", "metric", "final"},
	)

	p.valueMs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "page_perf_metric_value_ms",
			Help: "Most recently reported metric value in milliseconds",
		},
		[]string{"site", "metric"},
	)

	buckets := cfg.ValueBuckets
	if len(buckets) == 0 {
		buckets = []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
	}

	p.valueHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "page_perf_metric_value_histogram_ms",
			Help:    "Histogram of final metric values in milliseconds",
			Buckets: buckets,
		},
		[]string{"metric"},
	)

	p.lastReportTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "page_perf_last_report_timestamp_seconds",
			Help: "Unix timestamp of the last report for a site",
		},
		[]string{"site"},
	)

	p.registry.MustRegister(p.reportsTotal, p.valueMs, p.valueHistogram, p.lastReportTimestamp)
	if cfg.IncludeGoMetrics {
		p.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return p
}

// Write updates the metrics with one report
func (p *PrometheusOutput) Write(report *models.MetricReport) error {
	if p == nil {
		return nil
	}

	site := report.SiteLabel()
	metric := string(report.Metric.Name)

	p.reportsTotal.WithLabelValues(site, metric, strconv.FormatBool(report.Metric.IsFinal)).Inc()
	p.valueMs.WithLabelValues(site, metric).Set(report.Metric.Value)
	if report.Metric.IsFinal {
		p.valueHistogram.WithLabelValues(metric).Observe(report.Metric.Value)
	}
	p.lastReportTimestamp.WithLabelValues(site).Set(float64(report.Timestamp.Unix()))

	return nil
}

// Name returns the output module name
func (p *PrometheusOutput) Name() string {
	return "prometheus"
}

// Close shuts down the HTTP server
func (p *PrometheusOutput) Close() error {
	if p == nil || p.server == nil {
		return nil
	}

	p.logger.Info("shutting down Prometheus exporter")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return p.server.Shutdown(ctx)
}
