package models

import "time"

// VisitResult represents the outcome of visiting a single site
type VisitResult struct {
	// Timestamp when the visit started
	Timestamp time.Time `json:"@timestamp"`

	// VisitID is a unique identifier for this visit
	VisitID string `json:"visit_id"`

	// Site information
	Site SiteInfo `json:"site"`

	// Status information
	Status StatusInfo `json:"status"`

	// TotalDurationMs is the wall time of the visit
	TotalDurationMs int64 `json:"total_duration_ms"`

	// Metrics reported while the page was open, in report order
	Metrics []Metric `json:"metrics,omitempty"`

	// Error information (if navigation failed)
	Error *ErrorInfo `json:"error,omitempty"`

	// Metadata about the monitor environment
	Metadata VisitMetadata `json:"metadata,omitempty"`
}

// StatusInfo contains the visit status
type StatusInfo struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorInfo contains error details when a visit fails
type ErrorInfo struct {
	// ErrorType categorizes the error (e.g., "timeout", "dns", "connection")
	ErrorType string `json:"error_type"`

	// ErrorMessage is the human-readable error message
	ErrorMessage string `json:"error_message"`
}

// Final returns the final report of the named metric, if any
func (v *VisitResult) Final(name MetricName) (Metric, bool) {
	for _, m := range v.Metrics {
		if m.Name == name && m.IsFinal {
			return m, true
		}
	}
	return Metric{}, false
}
