// Package transport delivers metric reports from a page visit to their
// destination: the in-process outputs or a remote ingest endpoint.
package transport

import (
	"time"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/webperf"
)

// Sink accepts metric reports. Send must not block the caller for long: it
// runs on the page loop.
type Sink interface {
	Send(endpoint string, report *models.MetricReport) error
}

// Bind adapts sink into the transport a page's collectors report through.
// Every metric is wrapped in a report envelope carrying the visit context.
func Bind(sink Sink, site models.SiteInfo, visitID string, meta models.VisitMetadata) webperf.Transport {
	return func(endpoint string, data models.Metric) error {
		report := &models.MetricReport{
			Timestamp: time.Now().UTC(),
			ReportID:  webperf.NewMetricID(),
			Endpoint:  endpoint,
			VisitID:   visitID,
			Site:      site,
			Metric:    data,
			Metadata:  meta,
		}
		return sink.Send(endpoint, report)
	}
}
