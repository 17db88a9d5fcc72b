package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

const (
	navigationEntryJS = `JSON.stringify((function() {
		const entries = performance.getEntriesByType && performance.getEntriesByType('navigation');
		return entries && entries.length ? entries[0].toJSON() : null;
	})())`

	legacyTimingJS = `JSON.stringify((function() {
		if (!performance.timing) return null;
		const t = performance.timing.toJSON();
		const out = {};
		for (const k in t) {
			if (typeof t[k] === 'number') out[k] = t[k];
		}
		return out;
	})())`

	supportedEntryTypesJS = `JSON.stringify((typeof PerformanceObserver !== 'undefined' &&
		PerformanceObserver.supportedEntryTypes) || [])`
)

// timingSource reads raw timing data from the tab by evaluating
// JavaScript. It is called from the page loop while the tab is alive.
type timingSource struct {
	ctx context.Context
}

func (s *timingSource) evaluate(expr string, out any) error {
	var raw string
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(expr, &raw)); err != nil {
		return fmt.Errorf("evaluating timing script: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decoding timing data: %w", err)
	}
	return nil
}

// NavigationEntry returns the navigation entry, or nil if the page has none
func (s *timingSource) NavigationEntry() (*models.PerformanceEntry, error) {
	var entry *models.PerformanceEntry
	if err := s.evaluate(navigationEntryJS, &entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// LegacyTiming returns performance.timing with epoch-millisecond values
func (s *timingSource) LegacyTiming() (map[string]float64, error) {
	var timing map[string]float64
	if err := s.evaluate(legacyTimingJS, &timing); err != nil {
		return nil, err
	}
	return timing, nil
}

// SupportedEntryTypes returns PerformanceObserver.supportedEntryTypes
func (s *timingSource) SupportedEntryTypes() ([]string, error) {
	var types []string
	if err := s.evaluate(supportedEntryTypesJS, &types); err != nil {
		return nil, err
	}
	return types, nil
}
