package models

import "time"

// MetricReport is the envelope a sink receives for every metric report
type MetricReport struct {
	// Timestamp when the report was produced
	Timestamp time.Time `json:"@timestamp"`

	// ReportID is a unique identifier for this report
	ReportID string `json:"report_id" validate:"required"`

	// Endpoint is the destination the page asked the report to be sent to
	Endpoint string `json:"endpoint,omitempty"`

	// VisitID groups all reports produced by one page visit
	VisitID string `json:"visit_id,omitempty"`

	// Site information
	Site SiteInfo `json:"site"`

	// Metric is a snapshot of the metric at report time
	Metric Metric `json:"metric"`

	// Metadata about the reporting environment
	Metadata VisitMetadata `json:"metadata,omitempty"`
}

// SiteInfo contains information about the visited site
type SiteInfo struct {
	URL      string `json:"url" validate:"required"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// SiteLabel returns the name used to key per-site statistics
func (r *MetricReport) SiteLabel() string {
	if r.Site.Name != "" {
		return r.Site.Name
	}
	return r.Site.URL
}

// VisitMetadata contains information about the monitor instance
type VisitMetadata struct {
	// Hostname of the monitor instance
	Hostname string `json:"hostname,omitempty"`

	// Version of the monitor software
	Version string `json:"version,omitempty"`

	// Browser user agent
	UserAgent string `json:"user_agent,omitempty"`
}
