package webperf

import (
	"go.uber.org/zap"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// Transport delivers a metric report to endpoint. It is best effort: the
// returned error is logged and otherwise ignored.
type Transport func(endpoint string, data models.Metric) error

// PerformanceMetrics wires the five page-load metrics of one page session
// to a transport
type PerformanceMetrics struct {
	page       *Page
	transport  Transport
	endpoint   string
	visibility *VisibilityTracker
	newID      func() string
	logger     *zap.Logger
}

// Option configures PerformanceMetrics
type Option func(*PerformanceMetrics)

// WithLogger sets the logger used for transport and timing failures
func WithLogger(logger *zap.Logger) Option {
	return func(pm *PerformanceMetrics) {
		pm.logger = logger
	}
}

// WithIDGenerator replaces the metric ID generator
func WithIDGenerator(newID func() string) Option {
	return func(pm *PerformanceMetrics) {
		pm.newID = newID
	}
}

// New creates the collectors for page. Reports go to transport with
// endpoint as its destination.
func New(page *Page, transport Transport, endpoint string, opts ...Option) *PerformanceMetrics {
	pm := &PerformanceMetrics{
		page:       page,
		transport:  transport,
		endpoint:   endpoint,
		visibility: NewVisibilityTracker(page),
		newID:      NewMetricID,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(pm)
	}
	return pm
}

// Visibility returns the page's visibility tracker
func (pm *PerformanceMetrics) Visibility() *VisibilityTracker {
	return pm.visibility
}

func (pm *PerformanceMetrics) newMetric(name models.MetricName) *models.Metric {
	return models.NewMetric(name, pm.newID())
}

// GetTTFB reports time to first byte once the page has loaded
func (pm *PerformanceMetrics) GetTTFB(onReport ReportHandler) {
	metric := pm.newMetric(models.MetricTTFB)
	report := pm.bindReporter(onReport, metric, nil, false)

	pm.page.AfterLoad(func() {
		entry, err := ResolveNavigationTiming(pm.page.Source())
		if err != nil {
			pm.logger.Debug("TTFB timing unavailable", zap.Error(err))
			return
		}

		metric.Value = entry.ResponseStart
		metric.SourceEntry = entry
		metric.IsFinal = true
		report.report()
	})
}

// GetFCP reports first contentful paint, unless the page was hidden
// before it painted
func (pm *PerformanceMetrics) GetFCP(onReport ReportHandler) {
	metric := pm.newMetric(models.MetricFCP)
	firstHidden := pm.visibility.FirstHidden()

	var report *reporter
	sub, err := pm.page.Observe(models.EntryTypePaint, func(entry *models.PerformanceEntry) {
		if entry.Name != models.PaintFirstContentfulPaint {
			return
		}
		if entry.StartTime >= firstHidden.TimeStamp() {
			return
		}

		metric.Value = entry.StartTime
		metric.IsFinal = true
		metric.SourceEntry = entry
		report.report()
	})
	if err != nil {
		pm.logger.Debug("FCP unavailable", zap.Error(err))
		return
	}
	report = pm.bindReporter(onReport, metric, sub, false)
}

// GetDL reports DOM processing time (domComplete - domLoading)
func (pm *PerformanceMetrics) GetDL(onReport ReportHandler) {
	pm.afterLoadLegacy(models.MetricDL, onReport, func(entry *models.PerformanceEntry) float64 {
		return entry.DOMComplete - entry.DOMLoading
	})
}

// GetWL reports the duration of the window load handlers
func (pm *PerformanceMetrics) GetWL(onReport ReportHandler) {
	pm.afterLoadLegacy(models.MetricWL, onReport, func(entry *models.PerformanceEntry) float64 {
		return entry.LoadEventEnd - entry.LoadEventStart
	})
}

// GetNT reports resource network time (responseEnd - requestStart).
//
// Every resource entry is final, so the first report disconnects the
// shared subscription and later resources are never reported.
func (pm *PerformanceMetrics) GetNT(onReport ReportHandler) {
	metric := pm.newMetric(models.MetricNT)

	var report *reporter
	sub, err := pm.page.Observe(models.EntryTypeResource, func(entry *models.PerformanceEntry) {
		metric.Value = entry.ResponseEnd - entry.RequestStart
		metric.IsFinal = true
		metric.SourceEntry = entry
		report.report()
	})
	if err != nil {
		pm.logger.Debug("NT unavailable", zap.Error(err))
		return
	}
	report = pm.bindReporter(onReport, metric, sub, false)
}

// CollectAll registers every metric with the same handler
func (pm *PerformanceMetrics) CollectAll(onReport ReportHandler) {
	pm.GetTTFB(onReport)
	pm.GetFCP(onReport)
	pm.GetDL(onReport)
	pm.GetWL(onReport)
	pm.GetNT(onReport)
}

func (pm *PerformanceMetrics) afterLoadLegacy(name models.MetricName, onReport ReportHandler, value func(*models.PerformanceEntry) float64) {
	metric := pm.newMetric(name)
	report := pm.bindReporter(onReport, metric, nil, false)

	pm.page.AfterLoad(func() {
		entry, err := LegacyNavigationTiming(pm.page.Source())
		if err != nil {
			pm.logger.Debug("legacy timing unavailable", zap.String("metric", string(name)), zap.Error(err))
			return
		}

		metric.Value = value(entry)
		metric.SourceEntry = entry
		metric.IsFinal = true
		report.report()
	})
}
