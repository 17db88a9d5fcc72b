package webperf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

const testEndpoint = "https://collector.example.com/rum"

func newTestMetrics(rec *recorder, opts ...PageOption) (*Page, *PerformanceMetrics) {
	page := NewPage(&fakeSource{}, opts...)
	return page, New(page, rec.transport, testEndpoint)
}

func TestReporter_NeverReportsUnmeasured(t *testing.T) {
	rec := &recorder{}
	_, pm := newTestMetrics(rec, WithVisibility(VisibilityHidden))
	metric := models.NewMetric(models.MetricFCP, "m-1")
	r := pm.bindReporter(rec.onReport, metric, nil, true)

	metric.IsFinal = true
	r.report()
	r.report()

	assert.Empty(t, rec.sent)
	assert.Empty(t, rec.reported)
}

func TestReporter_InProgressHeldWhileVisible(t *testing.T) {
	rec := &recorder{}
	_, pm := newTestMetrics(rec)
	metric := models.NewMetric(models.MetricNT, "m-1")
	r := pm.bindReporter(rec.onReport, metric, nil, false)

	metric.Value = 42
	for i := 0; i < 5; i++ {
		r.report()
	}

	assert.Empty(t, rec.sent)
}

func TestReporter_DeltaAgainstLastReported(t *testing.T) {
	rec := &recorder{}
	page, pm := newTestMetrics(rec)
	metric := models.NewMetric(models.MetricNT, "m-1")
	r := pm.bindReporter(rec.onReport, metric, nil, false)

	// Observed while visible: held back, and must not move the baseline
	metric.Value = 40
	r.report()
	metric.Value = 100
	r.report()
	require.Empty(t, rec.sent)

	page.Emit(hidden(500))
	page.Loop().RunPending()

	r.report()
	r.report() // unchanged value while hidden: suppressed
	metric.Value = 250
	r.report()
	metric.IsFinal = true
	r.report() // unchanged but final: always sent

	require.Len(t, rec.sent, 3)
	assert.Equal(t, 100.0, rec.sent[0].Value)
	assert.Equal(t, 100.0, rec.sent[0].Delta)
	assert.Equal(t, 250.0, rec.sent[1].Value)
	assert.Equal(t, 150.0, rec.sent[1].Delta)
	assert.False(t, rec.sent[1].IsFinal)
	assert.Equal(t, 0.0, rec.sent[2].Delta)
	assert.True(t, rec.sent[2].IsFinal)

	for _, m := range rec.sent {
		assert.Equal(t, "m-1", m.ID)
	}
}

func TestReporter_FirstReportEvenWithZeroDelta(t *testing.T) {
	rec := &recorder{}
	_, pm := newTestMetrics(rec, WithVisibility(VisibilityHidden))
	metric := models.NewMetric(models.MetricWL, "m-1")
	r := pm.bindReporter(rec.onReport, metric, nil, false)

	metric.Value = 0
	r.report()
	r.report()

	require.Len(t, rec.sent, 1)
	assert.Equal(t, 0.0, rec.sent[0].Delta)
}

func TestReporter_ObserveAllUpdates(t *testing.T) {
	rec := &recorder{}
	_, pm := newTestMetrics(rec)
	metric := models.NewMetric(models.MetricNT, "m-1")
	r := pm.bindReporter(rec.onReport, metric, nil, true)

	metric.Value = 10
	r.report()
	r.report()
	metric.Value = 30
	r.report()

	require.Len(t, rec.sent, 2)
	assert.Equal(t, 20.0, rec.sent[1].Delta)
}

func TestReporter_TransportBeforeCallback(t *testing.T) {
	rec := &recorder{}
	_, pm := newTestMetrics(rec)
	metric := models.NewMetric(models.MetricTTFB, "m-1")
	r := pm.bindReporter(rec.onReport, metric, nil, false)

	metric.Value = 120
	metric.IsFinal = true
	r.report()

	assert.Equal(t, []string{"transport:TTFB", "callback:TTFB"}, rec.order)
	assert.Equal(t, []string{testEndpoint}, rec.endpoints)
}

func TestReporter_TransportFailureSwallowed(t *testing.T) {
	rec := &recorder{err: errors.New("collector unreachable")}
	_, pm := newTestMetrics(rec)
	metric := models.NewMetric(models.MetricTTFB, "m-1")
	r := pm.bindReporter(rec.onReport, metric, nil, false)

	metric.Value = 120
	metric.IsFinal = true
	r.report()
	r.report()

	// The failed send still counts as reported: no retry with a zero delta
	require.Len(t, rec.reported, 2)
	assert.Equal(t, 120.0, rec.reported[0].Delta)
	assert.Equal(t, 0.0, rec.reported[1].Delta)
}

func TestReporter_TransportPanicSwallowed(t *testing.T) {
	page := NewPage(&fakeSource{})
	var reported []models.Metric
	pm := New(page, func(string, models.Metric) error { panic("send exploded") }, testEndpoint)
	metric := models.NewMetric(models.MetricDL, "m-1")
	r := pm.bindReporter(func(m models.Metric) { reported = append(reported, m) }, metric, nil, false)

	metric.Value = 1500
	metric.IsFinal = true
	assert.NotPanics(t, r.report)
	assert.Len(t, reported, 1)
}

func TestReporter_NilTransportAndCallback(t *testing.T) {
	page := NewPage(&fakeSource{})
	pm := New(page, nil, testEndpoint)
	metric := models.NewMetric(models.MetricDL, "m-1")
	r := pm.bindReporter(nil, metric, nil, false)

	metric.Value = 1500
	metric.IsFinal = true
	assert.NotPanics(t, r.report)
}

func TestReporter_SnapshotIsolatedFromLaterUpdates(t *testing.T) {
	rec := &recorder{}
	_, pm := newTestMetrics(rec, WithVisibility(VisibilityHidden))
	metric := models.NewMetric(models.MetricNT, "m-1")
	r := pm.bindReporter(rec.onReport, metric, nil, false)

	metric.Value = 10
	r.report()
	metric.Value = 99

	assert.Equal(t, 10.0, rec.sent[0].Value)
	assert.Equal(t, 10.0, rec.reported[0].Value)
}

func TestReporter_FinalDisconnectsSubscription(t *testing.T) {
	rec := &recorder{}
	page := NewPage(&fakeSource{types: []string{models.EntryTypeResource}})
	pm := New(page, rec.transport, testEndpoint)

	sub, err := page.Observe(models.EntryTypeResource, func(*models.PerformanceEntry) {})
	require.NoError(t, err)

	metric := models.NewMetric(models.MetricNT, "m-1")
	r := pm.bindReporter(rec.onReport, metric, sub, false)

	// Unmeasured but final still disconnects
	metric.IsFinal = true
	r.report()

	assert.False(t, sub.Connected())
	assert.Empty(t, rec.sent)
}
