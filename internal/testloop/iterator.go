package testloop

import (
	"sync"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// SiteIterator hands out sites in round-robin order and counts completed
// rounds over the list
type SiteIterator struct {
	mu      sync.Mutex
	sites   []models.SiteDefinition
	current int
	round   int
}

// NewSiteIterator creates an iterator over a copy of sites
func NewSiteIterator(sites []models.SiteDefinition) *SiteIterator {
	return &SiteIterator{
		sites: append([]models.SiteDefinition(nil), sites...),
	}
}

// Next returns the next site and the round it belongs to, starting at 0.
// With no sites it returns the zero site.
func (i *SiteIterator) Next() (models.SiteDefinition, int) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if len(i.sites) == 0 {
		return models.SiteDefinition{}, 0
	}

	site, round := i.sites[i.current], i.round
	i.current++
	if i.current == len(i.sites) {
		i.current = 0
		i.round++
	}
	return site, round
}

// Count returns the total number of sites
func (i *SiteIterator) Count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.sites)
}

// Rounds returns how many full passes over the list have completed
func (i *SiteIterator) Rounds() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.round
}

// Reset starts over from the first site and round 0
func (i *SiteIterator) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.current = 0
	i.round = 0
}
