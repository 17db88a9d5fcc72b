package webperf

import (
	"errors"
	"fmt"
	"math"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// ErrNoTimingData is returned when neither the navigation entry nor the
// legacy timing object can be read
var ErrNoTimingData = errors.New("no navigation timing data available")

// TimingSource reads raw timing data out of the host page
type TimingSource interface {
	// NavigationEntry returns the structured navigation entry, or nil
	// when the page does not expose one.
	NavigationEntry() (*models.PerformanceEntry, error)

	// LegacyTiming returns the flat legacy timing object with absolute
	// epoch-millisecond values, including navigationStart.
	LegacyTiming() (map[string]float64, error)

	// SupportedEntryTypes lists the entry types the page can observe
	SupportedEntryTypes() ([]string, error)
}

const (
	legacyNavigationStart = "navigationStart"
	legacyToJSON          = "toJSON"
)

// ResolveNavigationTiming prefers the structured navigation entry and falls
// back to one synthesized from the legacy timing object.
func ResolveNavigationTiming(src TimingSource) (*models.PerformanceEntry, error) {
	entry, navErr := src.NavigationEntry()
	if navErr == nil && entry != nil {
		return entry, nil
	}

	entry, err := LegacyNavigationTiming(src)
	if err != nil {
		if navErr != nil {
			return nil, errors.Join(err, navErr)
		}
		return nil, err
	}
	return entry, nil
}

// LegacyNavigationTiming synthesizes a navigation entry from the legacy
// timing object. Every field becomes max(raw - navigationStart, 0).
func LegacyNavigationTiming(src TimingSource) (*models.PerformanceEntry, error) {
	timing, err := src.LegacyTiming()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoTimingData, err)
	}
	if len(timing) == 0 {
		return nil, ErrNoTimingData
	}

	navigationStart := timing[legacyNavigationStart]
	entry := &models.PerformanceEntry{
		EntryType: models.EntryTypeNavigation,
		StartTime: 0,
	}
	for key, raw := range timing {
		if key == legacyNavigationStart || key == legacyToJSON {
			continue
		}
		entry.SetTimingField(key, math.Max(raw-navigationStart, 0))
	}

	return entry, nil
}
