package models

// MetricName identifies one of the fixed page-load metrics
type MetricName string

const (
	// MetricTTFB is time to first byte of the main document
	MetricTTFB MetricName = "TTFB"

	// MetricFCP is first contentful paint
	MetricFCP MetricName = "FCP"

	// MetricDL is DOM processing time (domComplete - domLoading)
	MetricDL MetricName = "DL"

	// MetricWL is window load handler time (loadEventEnd - loadEventStart)
	MetricWL MetricName = "WL"

	// MetricNT is network time of a resource (responseEnd - requestStart)
	MetricNT MetricName = "NT"
)

// MetricNames lists every metric kind in reporting order
var MetricNames = []MetricName{MetricTTFB, MetricFCP, MetricDL, MetricWL, MetricNT}

// Valid reports whether n is one of the fixed metric names
func (n MetricName) Valid() bool {
	switch n {
	case MetricTTFB, MetricFCP, MetricDL, MetricWL, MetricNT:
		return true
	}
	return false
}

// UnmeasuredValue marks a metric whose value has not been observed yet
const UnmeasuredValue = -1

// Metric is one observed performance signal. It is also the payload handed
// to a transport.
type Metric struct {
	// Name is the metric kind
	Name MetricName `json:"name" validate:"required,oneof=TTFB FCP DL WL NT"`

	// Value is the measurement in milliseconds, UnmeasuredValue until measured
	Value float64 `json:"value" validate:"gte=0"`

	// Delta is the change since the last reported value
	Delta float64 `json:"delta"`

	// ID is generated once and stays stable for the metric's lifetime
	ID string `json:"id" validate:"required"`

	// IsFinal is set once no further updates will occur
	IsFinal bool `json:"isFinal"`

	// SourceEntry is the timeline entry that produced the current value.
	// Reporters never modify it.
	SourceEntry *PerformanceEntry `json:"sourceEntry,omitempty"`
}

// NewMetric returns an unmeasured metric
func NewMetric(name MetricName, id string) *Metric {
	return &Metric{
		Name:  name,
		Value: UnmeasuredValue,
		ID:    id,
	}
}

// Measured reports whether the metric carries a reportable value
func (m *Metric) Measured() bool {
	return m.Value >= 0
}
