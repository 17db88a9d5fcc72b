package browser

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/webperf"
)

// feedBinding is the runtime binding the injected script reports through
const feedBinding = "__perfFeed"

// feedScript runs in every new document before any page script. It
// forwards lifecycle events and paint/resource timeline entries to the
// binding as JSON.
const feedScript = `(function() {
	if (window.__perfFeedInstalled) return;
	window.__perfFeedInstalled = true;

	const send = (msg) => {
		try { window.` + feedBinding + `(JSON.stringify(msg)); } catch (e) {}
	};

	window.addEventListener('pageshow', (e) => {
		send({type: 'pageshow', timeStamp: e.timeStamp, persisted: e.persisted});
	}, true);
	window.addEventListener('pagehide', (e) => {
		send({type: 'pagehide', timeStamp: e.timeStamp, persisted: e.persisted});
	}, true);
	document.addEventListener('readystatechange', (e) => {
		send({type: 'readystatechange', timeStamp: e.timeStamp, readyState: document.readyState});
	}, true);
	document.addEventListener('visibilitychange', (e) => {
		send({type: 'visibilitychange', timeStamp: e.timeStamp, visibilityState: document.visibilityState});
	}, true);

	['paint', 'resource'].forEach((type) => {
		try {
			new PerformanceObserver((list) => {
				list.getEntries().forEach((entry) => {
					send({type: 'entry', timeStamp: performance.now(), entry: entry.toJSON()});
				});
			}).observe({type: type, buffered: true});
		} catch (e) {}
	});
})();`

// ErrInvalidFeedMessage is returned for binding payloads that are not a
// page event
var ErrInvalidFeedMessage = errors.New("invalid feed message")

// DecodeFeedMessage parses one binding payload into a page event
func DecodeFeedMessage(payload string) (webperf.Event, error) {
	var ev webperf.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return webperf.Event{}, fmt.Errorf("%w: %w", ErrInvalidFeedMessage, err)
	}

	switch ev.Type {
	case webperf.EventPageShow, webperf.EventPageHide:
	case webperf.EventReadyStateChange:
		if ev.ReadyState == "" {
			return webperf.Event{}, fmt.Errorf("%w: readystatechange without readyState", ErrInvalidFeedMessage)
		}
	case webperf.EventVisibilityChange:
		if ev.Visibility == "" {
			return webperf.Event{}, fmt.Errorf("%w: visibilitychange without visibilityState", ErrInvalidFeedMessage)
		}
	case webperf.EventEntry:
		if ev.Entry == nil || ev.Entry.EntryType == "" {
			return webperf.Event{}, fmt.Errorf("%w: entry without entryType", ErrInvalidFeedMessage)
		}
		if ev.Entry.EntryType != models.EntryTypePaint && ev.Entry.EntryType != models.EntryTypeResource {
			return webperf.Event{}, fmt.Errorf("%w: unexpected entry type %q", ErrInvalidFeedMessage, ev.Entry.EntryType)
		}
	default:
		return webperf.Event{}, fmt.Errorf("%w: unknown type %q", ErrInvalidFeedMessage, ev.Type)
	}

	return ev, nil
}
