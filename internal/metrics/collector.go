package metrics

import (
	"sync/atomic"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// Collector is the in-process destination of metric reports: it caches
// each report and fans it out to the outputs
type Collector struct {
	cache      *ResultsCache
	dispatcher *Dispatcher
	recorded   atomic.Int64
}

// NewCollector creates a collector caching up to cacheSize reports
func NewCollector(cacheSize int, dispatcher *Dispatcher) *Collector {
	return &Collector{
		cache:      NewResultsCache(cacheSize),
		dispatcher: dispatcher,
	}
}

// Record caches a report and dispatches it to every output
func (c *Collector) Record(report *models.MetricReport) {
	c.cache.Add(report)
	c.recorded.Add(1)

	if c.dispatcher != nil {
		c.dispatcher.Dispatch(report)
	}
}

// Recorded returns how many reports have been recorded since start
func (c *Collector) Recorded() int64 {
	return c.recorded.Load()
}

// GetRecentReports returns the N most recent reports
func (c *Collector) GetRecentReports(n int) []*models.MetricReport {
	return c.cache.GetLast(n)
}

// VisitReports returns the cached reports of one visit
func (c *Collector) VisitReports(visitID string) []*models.MetricReport {
	return c.cache.ForVisit(visitID)
}
