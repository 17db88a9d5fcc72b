package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

var validate = validator.New()

// LoadFromYAML merges a YAML config file into cfg. Keys missing from the
// file keep their current values.
func LoadFromYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// Validate checks cfg against its field rules
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if cfg.Reporting.Mode == ReportingModeHTTP {
		if err := validate.Var(cfg.Reporting.Endpoint, "url"); err != nil {
			return fmt.Errorf("reporting endpoint %q must be an absolute URL in http mode", cfg.Reporting.Endpoint)
		}
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv(cfg *Config) error {
	// General settings
	if err := envDuration("INTER_VISIT_DELAY", &cfg.General.InterVisitDelay); err != nil {
		return err
	}
	if err := envDuration("GLOBAL_TIMEOUT", &cfg.General.GlobalTimeout); err != nil {
		return err
	}
	envPositiveInt("CACHE_SIZE", &cfg.General.CacheSize)

	// Sites from comma-separated list
	if v := os.Getenv("SITES"); v != "" {
		sites, err := ParseSimpleSiteList(v)
		if err != nil {
			return fmt.Errorf("invalid SITES: %w", err)
		}
		cfg.Sites.List = sites
	}

	// Browser settings
	envBool("BROWSER_HEADLESS", &cfg.Browser.Headless)
	envString("BROWSER_USER_AGENT", &cfg.Browser.UserAgent)

	// Reporting
	envString("REPORT_MODE", &cfg.Reporting.Mode)
	envString("REPORT_ENDPOINT", &cfg.Reporting.Endpoint)
	if err := envDuration("REPORT_TIMEOUT", &cfg.Reporting.Timeout); err != nil {
		return err
	}
	if v := os.Getenv("REPORT_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid REPORT_RATE: %w", err)
		}
		cfg.Reporting.RatePerSecond = rate
	}

	// Logging
	envString("LOG_LEVEL", &cfg.Logging.Level)
	envString("LOG_FORMAT", &cfg.Logging.Format)

	// Elasticsearch
	envBool("ES_ENABLED", &cfg.Elasticsearch.Enabled)
	envString("ES_ENDPOINT", &cfg.Elasticsearch.Endpoint)
	envString("ES_INDEX_PATTERN", &cfg.Elasticsearch.IndexPattern)
	envString("ES_USERNAME", &cfg.Elasticsearch.Username)
	envString("ES_PASSWORD", &cfg.Elasticsearch.Password)
	envString("ES_API_KEY", &cfg.Elasticsearch.APIKey)
	envPositiveInt("ES_BULK_SIZE", &cfg.Elasticsearch.BulkSize)
	if err := envDuration("ES_FLUSH_INTERVAL", &cfg.Elasticsearch.FlushInterval); err != nil {
		return err
	}

	// SNMP
	envBool("SNMP_ENABLED", &cfg.SNMP.Enabled)
	envPositiveInt("SNMP_PORT", &cfg.SNMP.Port)
	envString("SNMP_COMMUNITY", &cfg.SNMP.Community)
	envString("SNMP_LISTEN_ADDRESS", &cfg.SNMP.ListenAddress)

	// Prometheus
	envBool("PROM_ENABLED", &cfg.Prometheus.Enabled)
	envPositiveInt("PROM_PORT", &cfg.Prometheus.Port)
	envString("PROM_PATH", &cfg.Prometheus.Path)
	envString("PROM_LISTEN_ADDRESS", &cfg.Prometheus.ListenAddress)

	// SQLite
	envBool("SQLITE_ENABLED", &cfg.SQLite.Enabled)
	envString("SQLITE_PATH", &cfg.SQLite.Path)

	// Ingest
	envBool("INGEST_ENABLED", &cfg.Ingest.Enabled)
	envPositiveInt("INGEST_PORT", &cfg.Ingest.Port)
	envString("INGEST_LISTEN_ADDRESS", &cfg.Ingest.ListenAddress)

	// Advanced
	envBool("HEALTH_CHECK_ENABLED", &cfg.Advanced.HealthCheckEnabled)
	envPositiveInt("HEALTH_CHECK_PORT", &cfg.Advanced.HealthCheckPort)
	envString("HEALTH_CHECK_LISTEN_ADDRESS", &cfg.Advanced.HealthCheckListenAddress)

	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

// envPositiveInt ignores values that are not positive integers
func envPositiveInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

// ParseSimpleSiteList parses a comma-separated list of domains/URLs
func ParseSimpleSiteList(sitesStr string) ([]models.SiteDefinition, error) {
	if sitesStr == "" {
		return nil, nil
	}

	parts := strings.Split(sitesStr, ",")
	sites := make([]models.SiteDefinition, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		// Normalize to full URL
		url := part
		if !strings.HasPrefix(part, "http://") && !strings.HasPrefix(part, "https://") {
			url = "https://" + part
		}

		// Derive name from domain
		name := part
		name = strings.TrimPrefix(name, "https://")
		name = strings.TrimPrefix(name, "http://")
		name = strings.TrimPrefix(name, "www.")
		if idx := strings.Index(name, "/"); idx > 0 {
			name = name[:idx]
		}
		if idx := strings.Index(name, "."); idx > 0 {
			name = name[:idx]
		}

		sites = append(sites, models.SiteDefinition{
			URL:                url,
			Name:               name,
			TimeoutSeconds:     30,
			SettleSeconds:      2,
			WaitForNetworkIdle: true,
		})
	}

	return sites, nil
}
