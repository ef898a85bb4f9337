// Package config loads and validates auditor configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Analyzers AnalyzersConfig `mapstructure:"analyzers"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	ReadTimeoutSeconds    int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds   int `mapstructure:"write_timeout_seconds"`
	ShutdownGraceSeconds  int `mapstructure:"shutdown_grace_seconds"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// AuditConfig governs the worker pool and audit pipeline behavior.
type AuditConfig struct {
	Concurrency       int    `mapstructure:"concurrency"`
	QueueDepth        int    `mapstructure:"queue_depth"`
	JobTimeoutSeconds int    `mapstructure:"job_timeout_seconds"`
	EventTopic        string `mapstructure:"event_topic"`
	ReportPrefix      string `mapstructure:"report_prefix"`
}

// AnalyzersConfig configures the page fetching analyzers.
type AnalyzersConfig struct {
	UserAgent           string `mapstructure:"user_agent"`
	FetchTimeoutSeconds int    `mapstructure:"fetch_timeout_seconds"`
	ProbeTimeoutSeconds int    `mapstructure:"probe_timeout_seconds"`
	MaxProbes           int    `mapstructure:"max_probes"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// StorageConfig selects and configures report blob persistence.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// DBConfig controls access to the relational database. An empty DSN
// selects the in-memory repository.
type DBConfig struct {
	DSN                 string `mapstructure:"dsn"`
	MaxConns            int    `mapstructure:"max_conns"`
	MinConns            int    `mapstructure:"min_conns"`
	ConnLifetimeMinutes int    `mapstructure:"conn_lifetime_minutes"`
}

// RedisConfig configures the quota counter store. An empty address
// selects the in-memory counter store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUDITOR")
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
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 30)
	v.SetDefault("server.shutdown_grace_seconds", 10)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("audit.concurrency", 4)
	v.SetDefault("audit.queue_depth", 64)
	v.SetDefault("audit.job_timeout_seconds", 0)
	v.SetDefault("audit.event_topic", "audit-events")
	v.SetDefault("audit.report_prefix", "reports")
	v.SetDefault("analyzers.user_agent", "site-auditor-bot/0.1")
	v.SetDefault("analyzers.fetch_timeout_seconds", 20)
	v.SetDefault("analyzers.probe_timeout_seconds", 5)
	v.SetDefault("analyzers.max_probes", 50)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.conn_lifetime_minutes", 30)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Audit.Concurrency <= 0 {
		return fmt.Errorf("audit.concurrency must be > 0")
	}
	if c.Audit.QueueDepth <= 0 {
		return fmt.Errorf("audit.queue_depth must be > 0")
	}
	if c.Analyzers.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("analyzers.fetch_timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Storage.Backend {
	case "memory":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when backend is gcs")
		}
	default:
		return fmt.Errorf("storage.backend must be memory or gcs, got %q", c.Storage.Backend)
	}
	if c.PubSub.Enabled && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// JobTimeout converts the configured job timeout into a duration.
// Zero disables the per-job deadline.
func (c Config) JobTimeout() time.Duration {
	return time.Duration(c.Audit.JobTimeoutSeconds) * time.Second
}

// FetchTimeout returns the analyzer page fetch budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Analyzers.FetchTimeoutSeconds) * time.Second
}
