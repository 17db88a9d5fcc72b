package webperf

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// ErrUnsupportedEntryType is returned by Observe when the page cannot
// observe the requested entry type
var ErrUnsupportedEntryType = errors.New("entry type not supported")

// EntryHandler receives one timeline entry
type EntryHandler func(entry *models.PerformanceEntry)

// Subscription is a live registration for one entry type
type Subscription struct {
	page         *Page
	entryType    string
	onEntry      EntryHandler
	live         bool
	disconnected bool
}

// Supports reports whether the page can observe entryType. The answer is
// cached for the page session; a failing source counts as unsupported.
func (p *Page) Supports(entryType string) bool {
	if p.supported == nil {
		p.supported = make(map[string]bool)
		types, err := p.source.SupportedEntryTypes()
		if err != nil {
			p.logger.Debug("supported entry types unavailable", zap.Error(err))
		}
		for _, t := range types {
			p.supported[t] = true
		}
	}
	return p.supported[entryType]
}

// Observe subscribes onEntry to every entry of entryType, starting with
// the ones already buffered. Buffered entries are replayed on the next
// tick; live entries follow in emission order.
func (p *Page) Observe(entryType string, onEntry EntryHandler) (sub *Subscription, err error) {
	defer func() {
		if r := recover(); r != nil {
			sub = nil
			err = fmt.Errorf("%w: observing %q: %v", ErrUnsupportedEntryType, entryType, r)
		}
	}()

	if !p.Supports(entryType) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEntryType, entryType)
	}

	sub = &Subscription{
		page:      p,
		entryType: entryType,
		onEntry:   onEntry,
	}
	p.observers[entryType] = append(p.observers[entryType], sub)
	p.loop.Post(sub.replay)

	return sub, nil
}

// EntryType returns the observed entry type
func (s *Subscription) EntryType() string {
	return s.entryType
}

// Connected reports whether entries are still delivered
func (s *Subscription) Connected() bool {
	return !s.disconnected
}

// Disconnect stops delivery. Calling it again has no effect.
func (s *Subscription) Disconnect() {
	if s.disconnected {
		return
	}
	s.disconnected = true

	observers := s.page.observers[s.entryType]
	for i, candidate := range observers {
		if candidate == s {
			s.page.observers[s.entryType] = append(observers[:i:i], observers[i+1:]...)
			break
		}
	}
}

// replay delivers the buffered entries, then switches to live delivery.
// Entries recorded between Observe and replay are picked up here from the
// buffer rather than live, so none is delivered twice.
func (s *Subscription) replay() {
	for _, entry := range s.page.BufferedEntries(s.entryType) {
		if s.disconnected {
			return
		}
		s.onEntry(entry)
	}
	s.live = true
}

func (s *Subscription) deliver(entry *models.PerformanceEntry) {
	if !s.live || s.disconnected {
		return
	}
	s.onEntry(entry)
}
