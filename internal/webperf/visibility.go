package webperf

import "math"

// HiddenCallback receives the time the page became hidden and whether it
// is being unloaded
type HiddenCallback func(timeStamp float64, isUnloading bool)

// VisibilityTracker derives "when was the page first hidden" and "is the
// page unloading" from lifecycle events. Its fields are written only by its
// own listeners, which run on the page loop.
type VisibilityTracker struct {
	page *Page

	firstHidden     float64
	firstHiddenInit bool

	isUnloading    bool
	listenersAdded bool
}

// NewVisibilityTracker creates a tracker for page
func NewVisibilityTracker(page *Page) *VisibilityTracker {
	return &VisibilityTracker{page: page}
}

// FirstHiddenView reads the tracker's first-hidden time on every call, so
// holders see the real timestamp once the page has been hidden
type FirstHiddenView struct {
	tracker *VisibilityTracker
}

// TimeStamp returns the first-hidden time, +Inf while the page has not been
// hidden yet
func (v FirstHiddenView) TimeStamp() float64 {
	return v.tracker.firstHidden
}

// FirstHidden returns a view of the first time the page was hidden. The
// first call memoizes 0 if the page is already hidden; otherwise +Inf until
// the next hide overwrites it.
func (t *VisibilityTracker) FirstHidden() FirstHiddenView {
	if !t.firstHiddenInit {
		t.firstHiddenInit = true
		if t.page.VisibilityState() == VisibilityHidden {
			t.firstHidden = 0
		} else {
			t.firstHidden = math.Inf(1)
			t.OnHidden(func(ts float64, _ bool) {
				t.firstHidden = ts
			}, true)
		}
	}
	return FirstHiddenView{tracker: t}
}

// IsUnloading reports whether the last pagehide was a real unload
func (t *VisibilityTracker) IsUnloading() bool {
	return t.isUnloading
}

// OnHidden runs cb every time the page becomes hidden, or only the first
// time when once is set
func (t *VisibilityTracker) OnHidden(cb HiddenCallback, once bool) {
	t.addListeners()

	var remove func()
	remove = t.page.AddEventListener(EventVisibilityChange, func(ev Event) {
		if t.page.VisibilityState() != VisibilityHidden {
			return
		}
		if once {
			remove()
		}
		cb(ev.TimeStamp, t.isUnloading)
	}, false)
}

func (t *VisibilityTracker) addListeners() {
	if t.listenersAdded {
		return
	}
	t.listenersAdded = true

	t.page.AddEventListener(EventPageHide, func(ev Event) {
		t.isUnloading = !ev.Persisted
	}, false)
}
