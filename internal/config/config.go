package config

import (
	"fmt"
	"time"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	General       GeneralConfig       `yaml:"general"`
	Sites         SitesConfig         `yaml:"sites"`
	Browser       BrowserConfig       `yaml:"browser"`
	Reporting     ReportingConfig     `yaml:"reporting"`
	Logging       LoggingConfig       `yaml:"logging"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	SNMP          SNMPConfig          `yaml:"snmp"`
	Prometheus    PrometheusConfig    `yaml:"prometheus"`
	SQLite        SQLiteConfig        `yaml:"sqlite"`
	Ingest        IngestConfig        `yaml:"ingest"`
	Advanced      AdvancedConfig      `yaml:"advanced"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	InterVisitDelay time.Duration `yaml:"inter_visit_delay" validate:"gte=0"`
	GlobalTimeout   time.Duration `yaml:"global_timeout" validate:"gt=0"`
	CacheSize       int           `yaml:"cache_size" validate:"gt=0"`
}

// SitesConfig contains the list of sites to visit
type SitesConfig struct {
	List []models.SiteDefinition `yaml:"list" validate:"dive"`
}

// BrowserConfig contains browser-specific settings
type BrowserConfig struct {
	Headless      bool   `yaml:"headless"`
	UserAgent     string `yaml:"user_agent"`
	WindowWidth   int    `yaml:"window_width" validate:"gt=0"`
	WindowHeight  int    `yaml:"window_height" validate:"gt=0"`
	DisableImages bool   `yaml:"disable_images"`
	ClearCookies  bool   `yaml:"clear_cookies"`
}

// Transport modes
const (
	ReportingModeLocal = "local"
	ReportingModeHTTP  = "http"
)

// ReportingConfig controls where metric reports are delivered
type ReportingConfig struct {
	// Mode is "local" (in-process outputs) or "http" (POST to Endpoint)
	Mode string `yaml:"mode" validate:"oneof=local http"`

	// Endpoint is the reporting destination handed to the collectors.
	// In http mode it must be an absolute URL.
	Endpoint string `yaml:"endpoint" validate:"required"`

	Timeout       time.Duration `yaml:"timeout" validate:"gt=0"`
	RatePerSecond float64       `yaml:"rate_per_second" validate:"gt=0"`
	Burst         int           `yaml:"burst" validate:"gt=0"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// ElasticsearchConfig contains Elasticsearch output settings
type ElasticsearchConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Endpoint      string        `yaml:"endpoint" validate:"required_if=Enabled true"`
	IndexPattern  string        `yaml:"index_pattern"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	APIKey        string        `yaml:"api_key"`
	BulkSize      int           `yaml:"bulk_size" validate:"gte=0"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxRetries    int           `yaml:"max_retries" validate:"gte=0"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
	TLSSkipVerify bool          `yaml:"tls_skip_verify"`
}

// SNMPConfig contains SNMP agent settings
type SNMPConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Port          int    `yaml:"port" validate:"gte=0,lte=65535"`
	Community     string `yaml:"community"`
	ListenAddress string `yaml:"listen_address"`
	EnterpriseOID string `yaml:"enterprise_oid"`
}

// PrometheusConfig contains Prometheus exporter settings
type PrometheusConfig struct {
	Enabled          bool      `yaml:"enabled"`
	Port             int       `yaml:"port" validate:"gte=0,lte=65535"`
	Path             string    `yaml:"path"`
	ListenAddress    string    `yaml:"listen_address"`
	IncludeGoMetrics bool      `yaml:"include_go_metrics"`
	ValueBuckets     []float64 `yaml:"value_buckets"`
}

// SQLiteConfig contains the report store settings
type SQLiteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// IngestConfig contains the report receiver settings
type IngestConfig struct {
	Enabled       bool    `yaml:"enabled"`
	ListenAddress string  `yaml:"listen_address"`
	Port          int     `yaml:"port" validate:"gte=0,lte=65535"`
	RatePerSecond float64 `yaml:"rate_per_second" validate:"gte=0"`
	Burst         int     `yaml:"burst" validate:"gte=0"`
}

// AdvancedConfig contains advanced/debugging settings
type AdvancedConfig struct {
	HealthCheckEnabled          bool          `yaml:"health_check_enabled"`
	HealthCheckPort             int           `yaml:"health_check_port" validate:"gte=0,lte=65535"`
	HealthCheckPath             string        `yaml:"health_check_path"`
	HealthCheckListenAddress    string        `yaml:"health_check_listen_address"`
	ShutdownTimeout             time.Duration `yaml:"shutdown_timeout"`
	MaxConsecutiveStartFailures int           `yaml:"max_consecutive_start_failures" validate:"gt=0"`
}

// Load builds the configuration: defaults, then the YAML file if one is
// given, then environment overrides. The result is validated.
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	if configFile != "" {
		if err := LoadFromYAML(configFile, cfg); err != nil {
			return nil, err
		}
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	// Load default sites if none configured
	if len(cfg.Sites.List) == 0 {
		cfg.Sites.List = DefaultSites()
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			InterVisitDelay: 2 * time.Second,
			GlobalTimeout:   30 * time.Second,
			CacheSize:       500,
		},
		Browser: BrowserConfig{
			Headless:     true,
			UserAgent:    "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			WindowWidth:  1920,
			WindowHeight: 1080,
			ClearCookies: true,
		},
		Reporting: ReportingConfig{
			Mode:          ReportingModeLocal,
			Endpoint:      "local",
			Timeout:       5 * time.Second,
			RatePerSecond: 50,
			Burst:         20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:       false,
			IndexPattern:  "page-performance-monitor-%{+yyyy.MM.dd}",
			BulkSize:      50,
			FlushInterval: 10 * time.Second,
			MaxRetries:    3,
			RetryBackoff:  1 * time.Second,
		},
		SNMP: SNMPConfig{
			Enabled:       true,
			Port:          161,
			Community:     "public",
			ListenAddress: "0.0.0.0",
			EnterpriseOID: ".1.3.6.1.4.1.99999",
		},
		Prometheus: PrometheusConfig{
			Enabled:          true,
			Port:             9090,
			Path:             "/metrics",
			ListenAddress:    "0.0.0.0",
			IncludeGoMetrics: true,
			ValueBuckets:     []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		SQLite: SQLiteConfig{
			Enabled: false,
			Path:    "/var/lib/page-performance-monitor/reports.db",
		},
		Ingest: IngestConfig{
			Enabled:       false,
			ListenAddress: "0.0.0.0",
			Port:          8081,
			RatePerSecond: 20,
			Burst:         40,
		},
		Advanced: AdvancedConfig{
			HealthCheckEnabled:          true,
			HealthCheckPort:             8080,
			HealthCheckPath:             "/health",
			HealthCheckListenAddress:    "0.0.0.0",
			ShutdownTimeout:             30 * time.Second,
			MaxConsecutiveStartFailures: 5,
		},
	}
}
