package webperf

import (
	"errors"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// fakeSource is a TimingSource with canned answers
type fakeSource struct {
	nav       *models.PerformanceEntry
	navErr    error
	legacy    map[string]float64
	legacyErr error
	types     []string
	typesErr  error
	typesCall int
	panicOn   string
}

func (f *fakeSource) NavigationEntry() (*models.PerformanceEntry, error) {
	if f.panicOn == "nav" {
		panic("navigation entry exploded")
	}
	return f.nav, f.navErr
}

func (f *fakeSource) LegacyTiming() (map[string]float64, error) {
	if f.legacy == nil && f.legacyErr == nil {
		return nil, errors.New("performance.timing is undefined")
	}
	return f.legacy, f.legacyErr
}

func (f *fakeSource) SupportedEntryTypes() ([]string, error) {
	f.typesCall++
	if f.panicOn == "types" {
		panic("PerformanceObserver is not defined")
	}
	return f.types, f.typesErr
}

// recorder captures transport calls and callbacks in order
type recorder struct {
	sent      []models.Metric
	reported  []models.Metric
	endpoints []string
	order     []string
	err       error
}

func (r *recorder) transport(endpoint string, m models.Metric) error {
	r.order = append(r.order, "transport:"+string(m.Name))
	r.endpoints = append(r.endpoints, endpoint)
	r.sent = append(r.sent, m)
	return r.err
}

func (r *recorder) onReport(m models.Metric) {
	r.order = append(r.order, "callback:"+string(m.Name))
	r.reported = append(r.reported, m)
}

func paintEntry(name string, start float64) Event {
	return Event{
		Type:      EventEntry,
		TimeStamp: start,
		Entry: &models.PerformanceEntry{
			Name:      name,
			EntryType: models.EntryTypePaint,
			StartTime: start,
		},
	}
}

func resourceEntry(name string, requestStart, responseEnd float64) Event {
	return Event{
		Type:      EventEntry,
		TimeStamp: responseEnd,
		Entry: &models.PerformanceEntry{
			Name:          name,
			EntryType:     models.EntryTypeResource,
			InitiatorType: "script",
			StartTime:     requestStart,
			RequestStart:  requestStart,
			ResponseEnd:   responseEnd,
		},
	}
}

func hidden(ts float64) Event {
	return Event{Type: EventVisibilityChange, TimeStamp: ts, Visibility: VisibilityHidden}
}

func visible(ts float64) Event {
	return Event{Type: EventVisibilityChange, TimeStamp: ts, Visibility: VisibilityVisible}
}
