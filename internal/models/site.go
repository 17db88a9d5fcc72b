package models

import (
	"net/url"
	"strings"
	"time"
)

// SiteDefinition represents a website to monitor
type SiteDefinition struct {
	// URL is the full URL to visit (e.g., "https://www.google.com")
	URL string `yaml:"url" json:"url" validate:"required,url"`

	// Name is a short, human-readable identifier (e.g., "google")
	Name string `yaml:"name" json:"name"`

	// Category groups sites by type (e.g., "search", "social", "infrastructure")
	Category string `yaml:"category" json:"category"`

	// TimeoutSeconds is the maximum time to wait for this site to load
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds" validate:"gte=0"`

	// SettleSeconds is how long to stay on the page after load before leaving.
	// Paint and resource entries arriving in this window are still observed.
	SettleSeconds int `yaml:"settle_seconds" json:"settle_seconds" validate:"gte=0"`

	// WaitForNetworkIdle determines if we should wait for the body to be ready
	WaitForNetworkIdle bool `yaml:"wait_for_network_idle" json:"wait_for_network_idle"`
}

// GetTimeout returns the timeout duration for this site
func (s *SiteDefinition) GetTimeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 30 * time.Second // Default timeout
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// GetSettle returns how long to stay on the page after load
func (s *SiteDefinition) GetSettle() time.Duration {
	if s.SettleSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(s.SettleSeconds) * time.Second
}

// GetName returns the site name, deriving it from URL if not set
func (s *SiteDefinition) GetName() string {
	if s.Name != "" {
		return s.Name
	}
	u, err := url.Parse(s.URL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if idx := strings.Index(host, "."); idx > 0 {
		host = host[:idx]
	}
	return host
}

// Info returns the site description carried on reports
func (s *SiteDefinition) Info() SiteInfo {
	return SiteInfo{
		URL:      s.URL,
		Name:     s.GetName(),
		Category: s.Category,
	}
}
