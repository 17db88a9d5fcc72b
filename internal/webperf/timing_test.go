package webperf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

func TestResolveNavigationTiming_PrefersNavigationEntry(t *testing.T) {
	nav := &models.PerformanceEntry{EntryType: models.EntryTypeNavigation, ResponseStart: 120}
	src := &fakeSource{
		nav:    nav,
		legacy: map[string]float64{"navigationStart": 1000, "responseStart": 1300},
	}

	entry, err := ResolveNavigationTiming(src)
	require.NoError(t, err)
	assert.Same(t, nav, entry)
}

func TestResolveNavigationTiming_FallsBackToLegacy(t *testing.T) {
	src := &fakeSource{
		legacy: map[string]float64{"navigationStart": 1000, "responseStart": 1300},
	}

	entry, err := ResolveNavigationTiming(src)
	require.NoError(t, err)
	assert.Equal(t, models.EntryTypeNavigation, entry.EntryType)
	assert.Equal(t, 300.0, entry.ResponseStart)
}

func TestResolveNavigationTiming_FallsBackWhenNavigationFails(t *testing.T) {
	src := &fakeSource{
		navErr: errors.New("getEntriesByType failed"),
		legacy: map[string]float64{"navigationStart": 1000, "responseStart": 1250},
	}

	entry, err := ResolveNavigationTiming(src)
	require.NoError(t, err)
	assert.Equal(t, 250.0, entry.ResponseStart)
}

func TestResolveNavigationTiming_NoData(t *testing.T) {
	src := &fakeSource{navErr: errors.New("no entries")}

	entry, err := ResolveNavigationTiming(src)
	assert.Nil(t, entry)
	assert.ErrorIs(t, err, ErrNoTimingData)
}

func TestLegacyNavigationTiming_RelativeAndClamped(t *testing.T) {
	src := &fakeSource{
		legacy: map[string]float64{
			"navigationStart":       1000,
			"toJSON":                99999,
			"fetchStart":            1005,
			"domainLookupStart":     1010,
			"domainLookupEnd":       1030,
			"requestStart":          1100,
			"responseStart":         1220,
			"responseEnd":           1400,
			"domLoading":            1500,
			"domComplete":           3000,
			"loadEventStart":        3000,
			"loadEventEnd":          3075,
			"secureConnectionStart": 0, // not HTTPS
			"unloadEventStart":      0,
		},
	}

	entry, err := LegacyNavigationTiming(src)
	require.NoError(t, err)

	assert.Equal(t, 0.0, entry.StartTime)
	assert.Equal(t, 5.0, entry.FetchStart)
	assert.Equal(t, 20.0, entry.DomainLookupEnd-entry.DomainLookupStart)
	assert.Equal(t, 220.0, entry.ResponseStart)
	assert.Equal(t, 500.0, entry.DOMLoading)
	assert.Equal(t, 2000.0, entry.DOMComplete)
	assert.Equal(t, 75.0, entry.LoadEventEnd-entry.LoadEventStart)

	// Unset legacy fields are zero, which would be negative when made
	// relative to navigationStart
	assert.Equal(t, 0.0, entry.SecureConnectionStart)
	assert.Equal(t, 0.0, entry.UnloadEventStart)
}

func TestLegacyNavigationTiming_Empty(t *testing.T) {
	_, err := LegacyNavigationTiming(&fakeSource{legacy: map[string]float64{}})
	assert.ErrorIs(t, err, ErrNoTimingData)

	_, err = LegacyNavigationTiming(&fakeSource{legacyErr: errors.New("timing gone")})
	assert.ErrorIs(t, err, ErrNoTimingData)
}
