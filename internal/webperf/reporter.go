package webperf

import (
	"go.uber.org/zap"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// ReportHandler receives a snapshot of a reported metric
type ReportHandler func(metric models.Metric)

// reporter holds the reporting state of one metric. prevValue is the last
// reported value, not the last observed one.
type reporter struct {
	pm           *PerformanceMetrics
	metric       *models.Metric
	subscription *Subscription
	observeAll   bool
	onReport     ReportHandler

	prevValue   float64
	hasReported bool
}

func (pm *PerformanceMetrics) bindReporter(onReport ReportHandler, metric *models.Metric, sub *Subscription, observeAll bool) *reporter {
	return &reporter{
		pm:           pm,
		metric:       metric,
		subscription: sub,
		observeAll:   observeAll,
		onReport:     onReport,
	}
}

// report sends the metric if the coalescing rules allow it.
//
// In-progress values are held back while the page is visible; a first
// report, a final report and any changed value seen while hidden always go
// out.
func (r *reporter) report() {
	m := r.metric

	if r.subscription != nil && m.IsFinal {
		r.subscription.Disconnect()
	}

	if !m.Measured() {
		return
	}

	if !r.observeAll && !m.IsFinal && r.pm.page.VisibilityState() != VisibilityHidden {
		return
	}

	m.Delta = m.Value - r.prevValue
	if m.Delta == 0 && !m.IsFinal && r.hasReported {
		return
	}

	snapshot := *m
	r.pm.send(snapshot)
	r.pm.notify(r.onReport, snapshot)

	r.prevValue = m.Value
	r.hasReported = true
}

// send hands the metric to the transport. Failures are logged and dropped.
func (pm *PerformanceMetrics) send(metric models.Metric) {
	if pm.transport == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			pm.logger.Error("metric transport panicked",
				zap.String("metric", string(metric.Name)),
				zap.Any("panic", r),
			)
		}
	}()

	if err := pm.transport(pm.endpoint, metric); err != nil {
		pm.logger.Warn("metric transport failed",
			zap.String("metric", string(metric.Name)),
			zap.String("endpoint", pm.endpoint),
			zap.Error(err),
		)
	}
}

func (pm *PerformanceMetrics) notify(onReport ReportHandler, metric models.Metric) {
	if onReport == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			pm.logger.Error("report callback panicked",
				zap.String("metric", string(metric.Name)),
				zap.Any("panic", r),
			)
		}
	}()

	onReport(metric)
}
