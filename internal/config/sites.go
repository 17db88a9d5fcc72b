package config

import (
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// DefaultSites returns the default list of sites to visit
func DefaultSites() []models.SiteDefinition {
	return []models.SiteDefinition{
		{
			URL:                "https://www.google.com",
			Name:               "google",
			Category:           "search",
			TimeoutSeconds:     30,
			SettleSeconds:      2,
			WaitForNetworkIdle: true,
		},
		{
			URL:                "https://github.com",
			Name:               "github",
			Category:           "development",
			TimeoutSeconds:     30,
			SettleSeconds:      3,
			WaitForNetworkIdle: true,
		},
		{
			URL:                "https://www.wikipedia.org",
			Name:               "wikipedia",
			Category:           "reference",
			TimeoutSeconds:     30,
			SettleSeconds:      2,
			WaitForNetworkIdle: true,
		},
		{
			URL:                "https://news.ycombinator.com",
			Name:               "hackernews",
			Category:           "news",
			TimeoutSeconds:     20,
			SettleSeconds:      1,
			WaitForNetworkIdle: true,
		},
		{
			URL:                "https://example.com",
			Name:               "example",
			Category:           "test",
			TimeoutSeconds:     15,
			SettleSeconds:      1,
			WaitForNetworkIdle: false,
		},
	}
}
