// Package webperf collects page-load performance metrics from a page
// session and reports them through an injected transport.
//
// A Page is driven by a single-threaded Loop: lifecycle events, timeline
// entries and metric reports are all processed one at a time on the loop
// goroutine, so none of the state in this package is locked.
package webperf

import (
	"go.uber.org/zap"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// ReadyState mirrors document.readyState
type ReadyState string

const (
	ReadyStateLoading     ReadyState = "loading"
	ReadyStateInteractive ReadyState = "interactive"
	ReadyStateComplete    ReadyState = "complete"
)

// VisibilityState mirrors document.visibilityState
type VisibilityState string

const (
	VisibilityVisible VisibilityState = "visible"
	VisibilityHidden  VisibilityState = "hidden"
)

// EventType names a page lifecycle event
type EventType string

const (
	EventPageShow         EventType = "pageshow"
	EventReadyStateChange EventType = "readystatechange"
	EventVisibilityChange EventType = "visibilitychange"
	EventPageHide         EventType = "pagehide"
	EventEntry            EventType = "entry"
)

// maxBufferedEntries caps the timeline buffer per entry type, like the
// browser's default resource timing buffer.
const maxBufferedEntries = 250

// Event is a lifecycle event or timeline entry emitted by the page
type Event struct {
	Type EventType `json:"type"`

	// TimeStamp is milliseconds since navigation start
	TimeStamp float64 `json:"timeStamp"`

	// ReadyState is set for readystatechange
	ReadyState ReadyState `json:"readyState,omitempty"`

	// Visibility is set for visibilitychange
	Visibility VisibilityState `json:"visibilityState,omitempty"`

	// Persisted is set for pageshow and pagehide (back-forward cache)
	Persisted bool `json:"persisted,omitempty"`

	// Entry is set for entry events
	Entry *models.PerformanceEntry `json:"entry,omitempty"`
}

// Listener handles a page event
type Listener func(Event)

type listener struct {
	fn      Listener
	once    bool
	removed bool
}

// Page is one page session: its readiness, visibility, timeline buffer
// and listeners. Except for Emit and Leave, methods must be called on the
// loop goroutine, or before the loop starts running.
type Page struct {
	loop       *Loop
	source     TimingSource
	logger     *zap.Logger
	readyState ReadyState
	visibility VisibilityState

	listeners map[EventType][]*listener
	buffer    map[string][]*models.PerformanceEntry
	observers map[string][]*Subscription
	supported map[string]bool
}

// PageOption configures a Page
type PageOption func(*Page)

// WithPageLogger sets the page logger
func WithPageLogger(logger *zap.Logger) PageOption {
	return func(p *Page) {
		p.logger = logger
	}
}

// WithReadyState sets the initial readiness
func WithReadyState(state ReadyState) PageOption {
	return func(p *Page) {
		p.readyState = state
	}
}

// WithVisibility sets the initial visibility
func WithVisibility(state VisibilityState) PageOption {
	return func(p *Page) {
		p.visibility = state
	}
}

// NewPage creates a page session reading raw timing data from source
func NewPage(source TimingSource, opts ...PageOption) *Page {
	p := &Page{
		source:     source,
		logger:     zap.NewNop(),
		readyState: ReadyStateLoading,
		visibility: VisibilityVisible,
		listeners:  make(map[EventType][]*listener),
		buffer:     make(map[string][]*models.PerformanceEntry),
		observers:  make(map[string][]*Subscription),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.loop = NewLoop(p.logger)
	return p
}

// Loop returns the loop driving this page
func (p *Page) Loop() *Loop {
	return p.loop
}

// Source returns the raw timing source
func (p *Page) Source() TimingSource {
	return p.source
}

// ReadyState returns the current readiness
func (p *Page) ReadyState() ReadyState {
	return p.readyState
}

// VisibilityState returns the current visibility
func (p *Page) VisibilityState() VisibilityState {
	return p.visibility
}

// Emit queues an event for dispatch. Safe to call from any goroutine.
func (p *Page) Emit(ev Event) {
	p.loop.Post(func() {
		p.dispatch(ev)
	})
}

// Leave emits what a browser fires when the user navigates away: a
// non-persisted pagehide followed by the switch to hidden.
func (p *Page) Leave(ts float64) {
	p.Emit(Event{Type: EventPageHide, TimeStamp: ts, Persisted: false})
	p.Emit(Event{Type: EventVisibilityChange, TimeStamp: ts, Visibility: VisibilityHidden})
}

// AddEventListener registers fn for events of type t. A once listener is
// removed before its first call. The returned func removes the listener.
func (p *Page) AddEventListener(t EventType, fn Listener, once bool) (remove func()) {
	l := &listener{fn: fn, once: once}
	p.listeners[t] = append(p.listeners[t], l)

	return func() {
		if l.removed {
			return
		}
		l.removed = true
		p.removeListener(t, l)
	}
}

// AfterLoad runs fn once the page has finished loading: on the next tick if
// it already has, otherwise on the next pageshow.
func (p *Page) AfterLoad(fn func()) {
	if p.readyState == ReadyStateComplete {
		p.loop.Post(fn)
		return
	}
	p.AddEventListener(EventPageShow, func(Event) {
		fn()
	}, true)
}

func (p *Page) dispatch(ev Event) {
	switch ev.Type {
	case EventReadyStateChange:
		if ev.ReadyState != "" {
			p.readyState = ev.ReadyState
		}
	case EventPageShow:
		p.readyState = ReadyStateComplete
	case EventVisibilityChange:
		if ev.Visibility != "" {
			p.visibility = ev.Visibility
		}
	case EventEntry:
		if ev.Entry == nil {
			return
		}
		p.record(ev.Entry)
	}

	current := p.listeners[ev.Type]
	if len(current) == 0 {
		return
	}
	snapshot := make([]*listener, len(current))
	copy(snapshot, current)

	for _, l := range snapshot {
		if l.removed {
			continue
		}
		if l.once {
			l.removed = true
			p.removeListener(ev.Type, l)
		}
		l.fn(ev)
	}
}

func (p *Page) removeListener(t EventType, target *listener) {
	current := p.listeners[t]
	for i, l := range current {
		if l == target {
			p.listeners[t] = append(current[:i:i], current[i+1:]...)
			return
		}
	}
}

// record buffers a timeline entry and hands it to live observers
func (p *Page) record(entry *models.PerformanceEntry) {
	if len(p.buffer[entry.EntryType]) < maxBufferedEntries {
		p.buffer[entry.EntryType] = append(p.buffer[entry.EntryType], entry)
	}

	observers := p.observers[entry.EntryType]
	if len(observers) == 0 {
		return
	}
	snapshot := make([]*Subscription, len(observers))
	copy(snapshot, observers)
	for _, sub := range snapshot {
		sub.deliver(entry)
	}
}

// BufferedEntries returns a copy of the buffered entries of a type
func (p *Page) BufferedEntries(entryType string) []*models.PerformanceEntry {
	entries := make([]*models.PerformanceEntry, len(p.buffer[entryType]))
	copy(entries, p.buffer[entryType])
	return entries
}
