package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricName_Valid(t *testing.T) {
	for _, n := range MetricNames {
		assert.True(t, n.Valid(), n)
	}
	assert.False(t, MetricName("LCP").Valid())
	assert.False(t, MetricName("").Valid())
}

func TestNewMetric_Unmeasured(t *testing.T) {
	m := NewMetric(MetricFCP, "id-1")

	assert.Equal(t, MetricFCP, m.Name)
	assert.Equal(t, "id-1", m.ID)
	assert.False(t, m.Measured())
	assert.False(t, m.IsFinal)
	assert.Zero(t, m.Delta)

	m.Value = 0
	assert.True(t, m.Measured())
}

func TestPerformanceEntry_SetTimingField(t *testing.T) {
	var e PerformanceEntry

	assert.True(t, e.SetTimingField("responseStart", 120))
	assert.True(t, e.SetTimingField("domLoading", 300))
	assert.True(t, e.SetTimingField("loadEventEnd", 900))
	assert.False(t, e.SetTimingField("navigationStart", 1))
	assert.False(t, e.SetTimingField("bogus", 1))

	assert.Equal(t, 120.0, e.ResponseStart)
	assert.Equal(t, 300.0, e.DOMLoading)
	assert.Equal(t, 900.0, e.LoadEventEnd)
}

func TestSiteDefinition_GetName(t *testing.T) {
	tests := []struct {
		site     SiteDefinition
		expected string
	}{
		{SiteDefinition{URL: "https://www.google.com", Name: "custom"}, "custom"},
		{SiteDefinition{URL: "https://www.google.com"}, "google"},
		{SiteDefinition{URL: "https://news.ycombinator.com"}, "news"},
		{SiteDefinition{URL: "not a url"}, "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.site.GetName(), tt.site.URL)
	}
}

func TestSiteDefinition_Defaults(t *testing.T) {
	var s SiteDefinition
	assert.Equal(t, "30s", s.GetTimeout().String())
	assert.Equal(t, "2s", s.GetSettle().String())

	s.TimeoutSeconds, s.SettleSeconds = 5, 1
	assert.Equal(t, "5s", s.GetTimeout().String())
	assert.Equal(t, "1s", s.GetSettle().String())
}

func TestVisitResult_Final(t *testing.T) {
	v := VisitResult{Metrics: []Metric{
		{Name: MetricNT, Value: 10, IsFinal: true},
		{Name: MetricTTFB, Value: 50, IsFinal: true},
	}}

	m, ok := v.Final(MetricTTFB)
	assert.True(t, ok)
	assert.Equal(t, 50.0, m.Value)

	_, ok = v.Final(MetricFCP)
	assert.False(t, ok)
}

func TestMetricReport_SiteLabel(t *testing.T) {
	r := MetricReport{Site: SiteInfo{URL: "https://example.com"}}
	assert.Equal(t, "https://example.com", r.SiteLabel())

	r.Site.Name = "example"
	assert.Equal(t, "example", r.SiteLabel())
}
