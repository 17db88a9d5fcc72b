package transport

import (
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/metrics"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// Local hands reports to the in-process collector. The endpoint is kept on
// the report but not otherwise used.
type Local struct {
	collector *metrics.Collector
}

// NewLocal creates a sink recording into collector
func NewLocal(collector *metrics.Collector) *Local {
	return &Local{collector: collector}
}

// Send records the report
func (l *Local) Send(_ string, report *models.MetricReport) error {
	l.collector.Record(report)
	return nil
}
