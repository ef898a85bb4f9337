package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  request_timeout_seconds: 45
auth:
  enabled: true
  api_key: secret
audit:
  concurrency: 6
  queue_depth: 128
  job_timeout_seconds: 120
  event_topic: audits-done
  report_prefix: artifacts
analyzers:
  user_agent: audit-agent
  fetch_timeout_seconds: 25
  probe_timeout_seconds: 3
  max_probes: 20
headless:
  enabled: true
  max_parallel: 3
  nav_timeout_seconds: 40
storage:
  backend: gcs
  gcs_bucket: audit-reports
db:
  dsn: postgres://localhost/audits
  max_conns: 16
redis:
  addr: localhost:6379
pubsub:
  enabled: true
  project_id: audits-prod
logging:
  level: debug
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Audit.Concurrency != 6 || cfg.Audit.EventTopic != "audits-done" {
		t.Fatalf("expected audit overrides to apply: %+v", cfg.Audit)
	}
	if cfg.Storage.Backend != "gcs" || cfg.Storage.GCSBucket != "audit-reports" {
		t.Fatalf("expected gcs storage config: %+v", cfg.Storage)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("expected redis addr to be set, got %q", cfg.Redis.Addr)
	}
	if got := cfg.JobTimeout(); got != 120*time.Second {
		t.Fatalf("expected job timeout 120s, got %v", got)
	}
	if got := cfg.FetchTimeout(); got != 25*time.Second {
		t.Fatalf("expected fetch timeout 25s, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Backend != "memory" {
		t.Fatalf("expected default memory backend, got %q", cfg.Storage.Backend)
	}
	if got := cfg.JobTimeout(); got != 0 {
		t.Fatalf("expected job timeout disabled by default, got %v", got)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:    ServerConfig{Port: 8080},
		Audit:     AuditConfig{Concurrency: 1, QueueDepth: 16},
		Analyzers: AnalyzersConfig{FetchTimeoutSeconds: 10},
		Storage:   StorageConfig{Backend: "memory"},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "invalid concurrency",
			cfg: func() Config {
				c := base
				c.Audit.Concurrency = 0
				return c
			}(),
			want: "audit.concurrency",
		},
		{
			name: "invalid queue depth",
			cfg: func() Config {
				c := base
				c.Audit.QueueDepth = 0
				return c
			}(),
			want: "audit.queue_depth",
		},
		{
			name: "invalid fetch timeout",
			cfg: func() Config {
				c := base
				c.Analyzers.FetchTimeoutSeconds = 0
				return c
			}(),
			want: "analyzers.fetch_timeout_seconds",
		},
		{
			name: "headless missing max parallel",
			cfg: func() Config {
				c := base
				c.Headless.Enabled = true
				c.Headless.MaxParallel = 0
				return c
			}(),
			want: "headless.max_parallel",
		},
		{
			name: "gcs missing bucket",
			cfg: func() Config {
				c := base
				c.Storage.Backend = "gcs"
				return c
			}(),
			want: "storage.gcs_bucket",
		},
		{
			name: "unknown storage backend",
			cfg: func() Config {
				c := base
				c.Storage.Backend = "s3"
				return c
			}(),
			want: "storage.backend",
		},
		{
			name: "pubsub missing project",
			cfg: func() Config {
				c := base
				c.PubSub.Enabled = true
				return c
			}(),
			want: "pubsub.project_id",
		},
		{
			name: "auth missing api key",
			cfg: func() Config {
				c := base
				c.Auth.Enabled = true
				return c
			}(),
			want: "auth.api_key",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
