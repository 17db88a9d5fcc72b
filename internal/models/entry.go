package models

// Entry types delivered on the performance timeline
const (
	EntryTypeNavigation = "navigation"
	EntryTypePaint      = "paint"
	EntryTypeResource   = "resource"
)

// PaintFirstContentfulPaint is the name of the paint entry FCP is taken from
const PaintFirstContentfulPaint = "first-contentful-paint"

// PerformanceEntry is a single performance timeline entry. Navigation, paint
// and resource entries share this shape; fields that do not apply to an
// entry type stay zero. JSON tags follow the browser's toJSON() output so
// entries decode straight from the page feed.
type PerformanceEntry struct {
	Name          string  `json:"name,omitempty"`
	EntryType     string  `json:"entryType"`
	StartTime     float64 `json:"startTime"`
	Duration      float64 `json:"duration,omitempty"`
	InitiatorType string  `json:"initiatorType,omitempty"`

	FetchStart            float64 `json:"fetchStart,omitempty"`
	RedirectStart         float64 `json:"redirectStart,omitempty"`
	RedirectEnd           float64 `json:"redirectEnd,omitempty"`
	DomainLookupStart     float64 `json:"domainLookupStart,omitempty"`
	DomainLookupEnd       float64 `json:"domainLookupEnd,omitempty"`
	ConnectStart          float64 `json:"connectStart,omitempty"`
	ConnectEnd            float64 `json:"connectEnd,omitempty"`
	SecureConnectionStart float64 `json:"secureConnectionStart,omitempty"`
	RequestStart          float64 `json:"requestStart,omitempty"`
	ResponseStart         float64 `json:"responseStart,omitempty"`
	ResponseEnd           float64 `json:"responseEnd,omitempty"`

	UnloadEventStart           float64 `json:"unloadEventStart,omitempty"`
	UnloadEventEnd             float64 `json:"unloadEventEnd,omitempty"`
	DOMLoading                 float64 `json:"domLoading,omitempty"`
	DOMInteractive             float64 `json:"domInteractive,omitempty"`
	DOMContentLoadedEventStart float64 `json:"domContentLoadedEventStart,omitempty"`
	DOMContentLoadedEventEnd   float64 `json:"domContentLoadedEventEnd,omitempty"`
	DOMComplete                float64 `json:"domComplete,omitempty"`
	LoadEventStart             float64 `json:"loadEventStart,omitempty"`
	LoadEventEnd               float64 `json:"loadEventEnd,omitempty"`

	TransferSize float64 `json:"transferSize,omitempty"`
}

// SetTimingField assigns a timing attribute by its browser name. It returns
// false for names that have no field.
func (e *PerformanceEntry) SetTimingField(name string, value float64) bool {
	field := e.timingField(name)
	if field == nil {
		return false
	}
	*field = value
	return true
}

func (e *PerformanceEntry) timingField(name string) *float64 {
	switch name {
	case "fetchStart":
		return &e.FetchStart
	case "redirectStart":
		return &e.RedirectStart
	case "redirectEnd":
		return &e.RedirectEnd
	case "domainLookupStart":
		return &e.DomainLookupStart
	case "domainLookupEnd":
		return &e.DomainLookupEnd
	case "connectStart":
		return &e.ConnectStart
	case "connectEnd":
		return &e.ConnectEnd
	case "secureConnectionStart":
		return &e.SecureConnectionStart
	case "requestStart":
		return &e.RequestStart
	case "responseStart":
		return &e.ResponseStart
	case "responseEnd":
		return &e.ResponseEnd
	case "unloadEventStart":
		return &e.UnloadEventStart
	case "unloadEventEnd":
		return &e.UnloadEventEnd
	case "domLoading":
		return &e.DOMLoading
	case "domInteractive":
		return &e.DOMInteractive
	case "domContentLoadedEventStart":
		return &e.DOMContentLoadedEventStart
	case "domContentLoadedEventEnd":
		return &e.DOMContentLoadedEventEnd
	case "domComplete":
		return &e.DOMComplete
	case "loadEventStart":
		return &e.LoadEventStart
	case "loadEventEnd":
		return &e.LoadEventEnd
	}
	return nil
}
