// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/huntwise/regwatch/internal/anomaly"
	"github.com/huntwise/regwatch/internal/confidence"
	"github.com/huntwise/regwatch/internal/regdata"
	"github.com/huntwise/regwatch/internal/validate"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig            `mapstructure:"server"`
	Crawler   CrawlerConfig           `mapstructure:"crawler"`
	Headless  HeadlessConfig          `mapstructure:"headless"`
	Store     StoreConfig             `mapstructure:"store"`
	Archive   ArchiveConfig           `mapstructure:"archive"`
	PubSub    PubSubConfig            `mapstructure:"pubsub"`
	Sanity    SanityConfig            `mapstructure:"sanity"`
	Anomaly   AnomalyConfig           `mapstructure:"anomaly"`
	Freshness FreshnessConfig         `mapstructure:"freshness"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	Sources   map[string]SourceConfig `mapstructure:"sources"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs fetch behavior for agency pages.
type CrawlerConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// StoreConfig selects the snapshot/alert/backoff persistence backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

// ArchiveConfig selects where raw page content is archived.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
	LocalDir  string `mapstructure:"local_dir"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// SanityConfig carries the per-residency value floors.
type SanityConfig struct {
	Residency string                `mapstructure:"residency"`
	Floors    map[string]FloorsSpec `mapstructure:"floors"`
}

// FloorsSpec is one residency class's minimum believable values.
type FloorsSpec struct {
	TagFeeMin     float64 `mapstructure:"tag_fee_min"`
	PointCostMin  float64 `mapstructure:"point_cost_min"`
	LicenseFeeMin float64 `mapstructure:"license_fee_min"`
}

// AnomalyConfig tunes the quarantine detector.
type AnomalyConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

// FreshnessConfig sets the age boundaries for display stamps.
type FreshnessConfig struct {
	AgingAfterDays    int `mapstructure:"aging_after_days"`
	StaleAfterDays    int `mapstructure:"stale_after_days"`
	CriticalAfterDays int `mapstructure:"critical_after_days"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SourceConfig describes one agency source: where its pages live, its draw
// calendar, and how to extract from its markup.
type SourceConfig struct {
	Name       string            `mapstructure:"name"`
	URLs       map[string]string `mapstructure:"urls"`
	Deadline   string            `mapstructure:"deadline"`
	WindowOpen bool              `mapstructure:"window_open"`
	Schema     SchemaSpec        `mapstructure:"schema"`
}

// SchemaSpec is the extraction schema in config form.
type SchemaSpec struct {
	RequiredMarkers []string          `mapstructure:"required_markers"`
	FieldMarkers    map[string]string `mapstructure:"field_markers"`
	RowMarker       string            `mapstructure:"row_marker"`
	MinExpectedRows int               `mapstructure:"min_expected_rows"`
	RequiresJS      bool              `mapstructure:"requires_js"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REGWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.user_agent", "regwatch-bot/0.1")
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.timeout_seconds", 15)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("store.backend", "memory")
	v.SetDefault("archive.backend", "memory")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("sanity.residency", "non_resident")
	v.SetDefault("sanity.floors.resident.tag_fee_min", 10.0)
	v.SetDefault("sanity.floors.resident.point_cost_min", 1.0)
	v.SetDefault("sanity.floors.resident.license_fee_min", 5.0)
	v.SetDefault("sanity.floors.non_resident.tag_fee_min", 100.0)
	v.SetDefault("sanity.floors.non_resident.point_cost_min", 1.0)
	v.SetDefault("sanity.floors.non_resident.license_fee_min", 50.0)
	v.SetDefault("anomaly.threshold", anomaly.DefaultThreshold)
	v.SetDefault("freshness.aging_after_days", 1)
	v.SetDefault("freshness.stale_after_days", 7)
	v.SetDefault("freshness.critical_after_days", 30)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set when store.backend is postgres")
		}
	default:
		return fmt.Errorf("store.backend must be memory or postgres, got %q", c.Store.Backend)
	}
	switch c.Archive.Backend {
	case "memory":
	case "local":
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir must be set when archive.backend is local")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set when archive.backend is gcs")
		}
	default:
		return fmt.Errorf("archive.backend must be memory, local, or gcs, got %q", c.Archive.Backend)
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	if c.Anomaly.Threshold <= 0 {
		return fmt.Errorf("anomaly.threshold must be > 0")
	}
	for id, src := range c.Sources {
		if len(src.URLs) == 0 {
			return fmt.Errorf("source %s has no urls", id)
		}
		if src.Deadline != "" {
			if _, err := time.Parse("2006-01-02", src.Deadline); err != nil {
				return fmt.Errorf("source %s deadline: %w", id, err)
			}
		}
	}
	return nil
}

// FetchTimeout converts the crawler timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}

// FloorTable converts the configured floors into the validator's table.
// Classes absent from config fall back to the compiled-in defaults.
func (c Config) FloorTable() validate.FloorTable {
	table := validate.DefaultFloors()
	for class, spec := range c.Sanity.Floors {
		table[regdata.ResidencyClass(class)] = validate.Floors{
			TagFeeMin:     spec.TagFeeMin,
			PointCostMin:  spec.PointCostMin,
			LicenseFeeMin: spec.LicenseFeeMin,
		}
	}
	return table
}

// Residency returns the configured residency class for validation.
func (c Config) Residency() regdata.ResidencyClass {
	if c.Sanity.Residency == "" {
		return regdata.NonResident
	}
	return regdata.ResidencyClass(c.Sanity.Residency)
}

// FreshnessPolicy converts the configured age boundaries.
func (c Config) FreshnessPolicy() confidence.FreshnessPolicy {
	return confidence.FreshnessPolicy{
		AgingAfterDays:    c.Freshness.AgingAfterDays,
		StaleAfterDays:    c.Freshness.StaleAfterDays,
		CriticalAfterDays: c.Freshness.CriticalAfterDays,
	}
}

// Schema converts a source's schema spec to the runtime form.
func (s SchemaSpec) Schema() regdata.ExtractionSchema {
	return regdata.ExtractionSchema{
		RequiredMarkers: s.RequiredMarkers,
		FieldMarkers:    s.FieldMarkers,
		RowMarker:       s.RowMarker,
		MinExpectedRows: s.MinExpectedRows,
		RequiresJS:      s.RequiresJS,
	}
}
