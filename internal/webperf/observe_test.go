package webperf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

func collectNames(dst *[]string) EntryHandler {
	return func(e *models.PerformanceEntry) {
		*dst = append(*dst, e.Name)
	}
}

func TestObserve_Unsupported(t *testing.T) {
	page := NewPage(&fakeSource{types: []string{models.EntryTypeResource}})

	sub, err := page.Observe(models.EntryTypePaint, func(*models.PerformanceEntry) {})
	assert.Nil(t, sub)
	assert.ErrorIs(t, err, ErrUnsupportedEntryType)
}

func TestObserve_SourceErrorIsUnsupported(t *testing.T) {
	page := NewPage(&fakeSource{typesErr: errors.New("no PerformanceObserver")})

	sub, err := page.Observe(models.EntryTypePaint, func(*models.PerformanceEntry) {})
	assert.Nil(t, sub)
	assert.ErrorIs(t, err, ErrUnsupportedEntryType)
}

func TestObserve_SourcePanicIsUnsupported(t *testing.T) {
	page := NewPage(&fakeSource{panicOn: "types"})

	var sub *Subscription
	var err error
	assert.NotPanics(t, func() {
		sub, err = page.Observe(models.EntryTypePaint, func(*models.PerformanceEntry) {})
	})
	assert.Nil(t, sub)
	assert.ErrorIs(t, err, ErrUnsupportedEntryType)
}

func TestObserve_SupportedTypesCached(t *testing.T) {
	src := &fakeSource{types: []string{models.EntryTypePaint, models.EntryTypeResource}}
	page := NewPage(src)

	page.Supports(models.EntryTypePaint)
	page.Supports(models.EntryTypeResource)
	page.Supports("largest-contentful-paint")

	assert.Equal(t, 1, src.typesCall)
}

func TestObserve_ReplaysBufferedThenLive(t *testing.T) {
	page := NewPage(&fakeSource{types: []string{models.EntryTypePaint}})

	page.Emit(paintEntry("first-paint", 100))
	page.Emit(paintEntry("first-contentful-paint", 120))
	page.Loop().RunPending()

	var got []string
	sub, err := page.Observe(models.EntryTypePaint, collectNames(&got))
	require.NoError(t, err)

	// Replay is asynchronous
	assert.Empty(t, got)

	page.Emit(paintEntry("late-paint", 300))
	page.Loop().RunPending()

	assert.Equal(t, []string{"first-paint", "first-contentful-paint", "late-paint"}, got)
	assert.True(t, sub.Connected())
}

func TestObserve_EntryQueuedBeforeReplayDeliveredOnce(t *testing.T) {
	page := NewPage(&fakeSource{types: []string{models.EntryTypePaint}})

	// Queued before Observe, dispatched after it
	page.Emit(paintEntry("first-paint", 100))

	var got []string
	_, err := page.Observe(models.EntryTypePaint, collectNames(&got))
	require.NoError(t, err)

	page.Loop().RunPending()
	assert.Equal(t, []string{"first-paint"}, got)
}

func TestObserve_OtherTypesNotDelivered(t *testing.T) {
	page := NewPage(&fakeSource{types: []string{models.EntryTypePaint, models.EntryTypeResource}})

	var got []string
	_, err := page.Observe(models.EntryTypePaint, collectNames(&got))
	require.NoError(t, err)

	page.Emit(resourceEntry("app.js", 10, 40))
	page.Emit(paintEntry("first-paint", 100))
	page.Loop().RunPending()

	assert.Equal(t, []string{"first-paint"}, got)
}

func TestSubscription_DisconnectStopsReplayBatch(t *testing.T) {
	page := NewPage(&fakeSource{types: []string{models.EntryTypeResource}})
	page.Emit(resourceEntry("a.js", 0, 10))
	page.Emit(resourceEntry("b.js", 0, 20))
	page.Emit(resourceEntry("c.js", 0, 30))
	page.Loop().RunPending()

	var got []string
	var sub *Subscription
	sub, err := page.Observe(models.EntryTypeResource, func(e *models.PerformanceEntry) {
		got = append(got, e.Name)
		sub.Disconnect()
	})
	require.NoError(t, err)

	page.Emit(resourceEntry("d.js", 0, 40))
	page.Loop().RunPending()

	assert.Equal(t, []string{"a.js"}, got)
	assert.False(t, sub.Connected())
	assert.Empty(t, page.observers[models.EntryTypeResource])

	assert.NotPanics(t, sub.Disconnect)
}

func TestPage_BufferIsBounded(t *testing.T) {
	page := NewPage(&fakeSource{types: []string{models.EntryTypeResource}})
	for i := 0; i < maxBufferedEntries+10; i++ {
		page.Emit(resourceEntry("r.js", 0, float64(i)))
	}
	page.Loop().RunPending()

	assert.Len(t, page.BufferedEntries(models.EntryTypeResource), maxBufferedEntries)
}

func TestPage_AfterLoad(t *testing.T) {
	t.Run("waits for pageshow", func(t *testing.T) {
		page := NewPage(&fakeSource{})
		calls := 0
		page.AfterLoad(func() { calls++ })

		page.Loop().RunPending()
		assert.Zero(t, calls)

		page.Emit(Event{Type: EventPageShow, TimeStamp: 400})
		page.Emit(Event{Type: EventPageShow, TimeStamp: 900, Persisted: true})
		page.Loop().RunPending()

		assert.Equal(t, 1, calls)
		assert.Equal(t, ReadyStateComplete, page.ReadyState())
	})

	t.Run("already complete defers to next tick", func(t *testing.T) {
		page := NewPage(&fakeSource{}, WithReadyState(ReadyStateComplete))
		calls := 0
		page.AfterLoad(func() { calls++ })

		assert.Zero(t, calls)
		page.Loop().RunPending()
		assert.Equal(t, 1, calls)
	})
}

func TestPage_ReadyStateChange(t *testing.T) {
	page := NewPage(&fakeSource{})
	page.Emit(Event{Type: EventReadyStateChange, ReadyState: ReadyStateInteractive})
	page.Loop().RunPending()

	assert.Equal(t, ReadyStateInteractive, page.ReadyState())
}
