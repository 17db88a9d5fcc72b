package webperf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

func fixedID(id string) Option {
	return WithIDGenerator(func() string { return id })
}

func TestGetTTFB_ReportsOnceAfterLoad(t *testing.T) {
	rec := &recorder{}
	nav := &models.PerformanceEntry{EntryType: models.EntryTypeNavigation, ResponseStart: 120}
	page := NewPage(&fakeSource{nav: nav})
	pm := New(page, rec.transport, testEndpoint, fixedID("ttfb-1"))

	pm.GetTTFB(rec.onReport)
	page.Loop().RunPending()
	require.Empty(t, rec.sent, "TTFB must wait for load")

	page.Emit(Event{Type: EventPageShow, TimeStamp: 800})
	page.Leave(2000)
	page.Loop().RunPending()

	require.Len(t, rec.sent, 1)
	got := rec.sent[0]
	assert.Equal(t, models.MetricTTFB, got.Name)
	assert.Equal(t, 120.0, got.Value)
	assert.Equal(t, 120.0, got.Delta)
	assert.True(t, got.IsFinal)
	assert.Equal(t, "ttfb-1", got.ID)
	assert.Same(t, nav, got.SourceEntry)
	assert.Equal(t, rec.sent, rec.reported)
}

func TestGetTTFB_AlreadyLoaded(t *testing.T) {
	rec := &recorder{}
	page := NewPage(&fakeSource{
		legacy: map[string]float64{"navigationStart": 5000, "responseStart": 5090},
	}, WithReadyState(ReadyStateComplete))
	pm := New(page, rec.transport, testEndpoint)

	pm.GetTTFB(rec.onReport)
	assert.Empty(t, rec.sent, "must not report synchronously")

	page.Loop().RunPending()
	require.Len(t, rec.sent, 1)
	assert.Equal(t, 90.0, rec.sent[0].Value)
	assert.Equal(t, models.EntryTypeNavigation, rec.sent[0].SourceEntry.EntryType)
}

func TestGetTTFB_NoTimingData(t *testing.T) {
	rec := &recorder{}
	page := NewPage(&fakeSource{legacyErr: errors.New("no timing")}, WithReadyState(ReadyStateComplete))
	pm := New(page, rec.transport, testEndpoint)

	assert.NotPanics(t, func() {
		pm.GetTTFB(rec.onReport)
		page.Loop().RunPending()
	})
	assert.Empty(t, rec.sent)
	assert.Empty(t, rec.reported)
}

func TestGetFCP_ReportsFirstContentfulPaint(t *testing.T) {
	rec := &recorder{}
	page := NewPage(&fakeSource{types: []string{models.EntryTypePaint, models.EntryTypeResource}})
	pm := New(page, rec.transport, testEndpoint)

	pm.GetFCP(rec.onReport)
	page.Emit(paintEntry("first-paint", 700))
	page.Emit(paintEntry(models.PaintFirstContentfulPaint, 850))
	page.Loop().RunPending()

	require.Len(t, rec.reported, 1)
	got := rec.reported[0]
	assert.Equal(t, models.MetricFCP, got.Name)
	assert.Equal(t, 850.0, got.Value)
	assert.Equal(t, 850.0, got.Delta)
	assert.True(t, got.IsFinal)
	assert.Equal(t, models.PaintFirstContentfulPaint, got.SourceEntry.Name)

	// A duplicate paint entry must not produce a second report
	page.Emit(paintEntry(models.PaintFirstContentfulPaint, 990))
	page.Leave(3000)
	page.Loop().RunPending()

	assert.Len(t, rec.reported, 1)
	assert.Len(t, rec.sent, 1)
	assert.Empty(t, page.observers[models.EntryTypePaint])
}

func TestGetFCP_BufferedPaint(t *testing.T) {
	rec := &recorder{}
	page := NewPage(&fakeSource{types: []string{models.EntryTypePaint}})
	pm := New(page, rec.transport, testEndpoint)

	page.Emit(paintEntry(models.PaintFirstContentfulPaint, 430))
	page.Loop().RunPending()

	pm.GetFCP(rec.onReport)
	page.Loop().RunPending()

	require.Len(t, rec.reported, 1)
	assert.Equal(t, 430.0, rec.reported[0].Value)
}

func TestGetFCP_PaintAfterHiddenDiscarded(t *testing.T) {
	rec := &recorder{}
	page := NewPage(&fakeSource{types: []string{models.EntryTypePaint}})
	pm := New(page, rec.transport, testEndpoint)

	pm.GetFCP(rec.onReport)
	page.Emit(hidden(500))
	page.Emit(visible(600))
	page.Emit(paintEntry(models.PaintFirstContentfulPaint, 900))
	page.Leave(2000)
	page.Loop().RunPending()

	assert.Empty(t, rec.sent)
	assert.Empty(t, rec.reported)
}

func TestGetFCP_PageStartedHidden(t *testing.T) {
	rec := &recorder{}
	page := NewPage(&fakeSource{types: []string{models.EntryTypePaint}}, WithVisibility(VisibilityHidden))
	pm := New(page, rec.transport, testEndpoint)

	pm.GetFCP(rec.onReport)
	page.Emit(paintEntry(models.PaintFirstContentfulPaint, 10))
	page.Loop().RunPending()

	assert.Empty(t, rec.reported)
}

func TestGetFCP_UnsupportedPaint(t *testing.T) {
	rec := &recorder{}
	page := NewPage(&fakeSource{types: []string{models.EntryTypeResource}})
	pm := New(page, rec.transport, testEndpoint)

	assert.NotPanics(t, func() {
		pm.GetFCP(rec.onReport)
		page.Emit(paintEntry(models.PaintFirstContentfulPaint, 850))
		page.Loop().RunPending()
	})
	assert.Empty(t, rec.sent)
	assert.Empty(t, rec.reported)
}

func TestGetDL_DomProcessingTime(t *testing.T) {
	rec := &recorder{}
	page := NewPage(&fakeSource{
		// The navigation entry has no domLoading; DL always uses legacy timing
		nav: &models.PerformanceEntry{EntryType: models.EntryTypeNavigation, DOMComplete: 9999},
		legacy: map[string]float64{
			"navigationStart": 1000,
			"domLoading":      1500,
			"domComplete":     3000,
		},
	})
	pm := New(page, rec.transport, testEndpoint)

	pm.GetDL(rec.onReport)
	page.Emit(Event{Type: EventPageShow})
	page.Loop().RunPending()

	require.Len(t, rec.reported, 1)
	got := rec.reported[0]
	assert.Equal(t, models.MetricDL, got.Name)
	assert.Equal(t, 1500.0, got.Value)
	assert.Equal(t, 1500.0, got.Delta)
	assert.True(t, got.IsFinal)
}

func TestGetWL_LoadHandlerTime(t *testing.T) {
	rec := &recorder{}
	page := NewPage(&fakeSource{
		legacy: map[string]float64{
			"navigationStart": 1000,
			"loadEventStart":  3000,
			"loadEventEnd":    3075,
		},
	}, WithReadyState(ReadyStateComplete))
	pm := New(page, rec.transport, testEndpoint)

	pm.GetWL(rec.onReport)
	page.Loop().RunPending()

	require.Len(t, rec.reported, 1)
	assert.Equal(t, models.MetricWL, rec.reported[0].Name)
	assert.Equal(t, 75.0, rec.reported[0].Value)
}

func TestGetDL_NegativeNeverReported(t *testing.T) {
	rec := &recorder{}
	page := NewPage(&fakeSource{
		// domComplete not reached yet
		legacy: map[string]float64{"navigationStart": 1000, "domLoading": 1500},
	}, WithReadyState(ReadyStateComplete))
	pm := New(page, rec.transport, testEndpoint)

	pm.GetDL(rec.onReport)
	page.Loop().RunPending()

	assert.Empty(t, rec.sent)
}

// GetNT shares one final metric and one subscription across all resources.
// The first report disconnects the subscription, so only the first
// resource on the page is ever reported.
func TestGetNT_ReportsOnlyFirstResource(t *testing.T) {
	rec := &recorder{}
	page := NewPage(&fakeSource{types: []string{models.EntryTypeResource}})
	pm := New(page, rec.transport, testEndpoint)

	page.Emit(resourceEntry("style.css", 100, 180))
	page.Emit(resourceEntry("app.js", 120, 400))
	page.Loop().RunPending()

	pm.GetNT(rec.onReport)
	page.Emit(resourceEntry("logo.png", 500, 650))
	page.Loop().RunPending()

	require.Len(t, rec.reported, 1)
	got := rec.reported[0]
	assert.Equal(t, models.MetricNT, got.Name)
	assert.Equal(t, 80.0, got.Value)
	assert.True(t, got.IsFinal)
	assert.Equal(t, "style.css", got.SourceEntry.Name)
	assert.Empty(t, page.observers[models.EntryTypeResource])
}

func TestCollectAll_FullPageLifecycle(t *testing.T) {
	rec := &recorder{}
	page := NewPage(&fakeSource{
		types: []string{models.EntryTypePaint, models.EntryTypeResource},
		nav:   &models.PerformanceEntry{EntryType: models.EntryTypeNavigation, ResponseStart: 120},
		legacy: map[string]float64{
			"navigationStart": 1000,
			"domLoading":      1500,
			"domComplete":     3000,
			"loadEventStart":  3000,
			"loadEventEnd":    3040,
		},
	})
	pm := New(page, rec.transport, testEndpoint)

	pm.CollectAll(rec.onReport)
	page.Emit(resourceEntry("app.js", 200, 260))
	page.Emit(paintEntry(models.PaintFirstContentfulPaint, 850))
	page.Emit(Event{Type: EventReadyStateChange, ReadyState: ReadyStateComplete})
	page.Emit(Event{Type: EventPageShow, TimeStamp: 2100})
	page.Leave(5000)
	page.Loop().RunPending()

	byName := map[models.MetricName][]models.Metric{}
	for _, m := range rec.reported {
		require.GreaterOrEqual(t, m.Value, 0.0)
		require.True(t, m.IsFinal)
		byName[m.Name] = append(byName[m.Name], m)
	}
	for _, name := range models.MetricNames {
		assert.Len(t, byName[name], 1, "metric %s", name)
	}
	assert.Equal(t, 60.0, byName[models.MetricNT][0].Value)
	assert.Equal(t, 850.0, byName[models.MetricFCP][0].Value)
	assert.Equal(t, 120.0, byName[models.MetricTTFB][0].Value)
	assert.Equal(t, 1500.0, byName[models.MetricDL][0].Value)
	assert.Equal(t, 40.0, byName[models.MetricWL][0].Value)

	ids := map[string]bool{}
	for _, m := range rec.reported {
		ids[m.ID] = true
	}
	assert.Len(t, ids, 5)
}

func TestNewMetricID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewMetricID()
		require.NotEmpty(t, id)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
