package metrics

import (
	"sync"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// ResultsCache stores recent metric reports in memory. It is ephemeral and
// resets on restart.
type ResultsCache struct {
	maxSize int
	reports []*models.MetricReport
	mu      sync.RWMutex
}

// NewResultsCache creates a new results cache with the specified size
func NewResultsCache(maxSize int) *ResultsCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &ResultsCache{
		maxSize: maxSize,
		reports: make([]*models.MetricReport, 0, maxSize),
	}
}

// Add adds a report to the cache, evicting the oldest when full
func (c *ResultsCache) Add(report *models.MetricReport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reports = append(c.reports, report)

	// Trim to max size (keep most recent)
	if len(c.reports) > c.maxSize {
		c.reports = c.reports[len(c.reports)-c.maxSize:]
	}
}

// GetLast returns the N most recent reports, oldest first
func (c *ResultsCache) GetLast(n int) []*models.MetricReport {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n > len(c.reports) {
		n = len(c.reports)
	}
	if n < 0 {
		n = 0
	}

	reports := make([]*models.MetricReport, n)
	copy(reports, c.reports[len(c.reports)-n:])
	return reports
}

// ForVisit returns the cached reports of one visit in report order
func (c *ResultsCache) ForVisit(visitID string) []*models.MetricReport {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var reports []*models.MetricReport
	for _, r := range c.reports {
		if r.VisitID == visitID {
			reports = append(reports, r)
		}
	}
	return reports
}

// Count returns the current number of cached reports
func (c *ResultsCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.reports)
}

// Clear empties the cache
func (c *ResultsCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = make([]*models.MetricReport, 0, c.maxSize)
}
