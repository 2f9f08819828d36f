// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for convocore.
package config

import (
	"time"

	"github.com/flemzord/convocore/internal/provider/anthropic"
)

// Config is the top-level configuration structure.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Provider      ProviderConfig      `yaml:"provider"`
	Limits        map[string]Limit    `yaml:"limits,omitempty"`
	Context       ContextConfig       `yaml:"context"`
	Summarization SummarizationConfig `yaml:"summarization"`
	Telemetry     TelemetryConfig     `yaml:"telemetry,omitempty"`
	Maintenance   MaintenanceConfig   `yaml:"maintenance,omitempty"`
}

// ServerConfig holds the HTTP gateway settings.
type ServerConfig struct {
	// Listen is the host:port the gateway binds to.
	Listen string `yaml:"listen"`

	// AuthToken, when set, requires a matching bearer token on every
	// API request. Health and metrics stay open.
	AuthToken string `yaml:"auth_token,omitempty"`
}

// StorageConfig selects and configures the history repository.
type StorageConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver"`

	// Path is the SQLite database file. Ignored by the memory driver.
	Path string `yaml:"path,omitempty"`
}

// ProviderConfig holds AI provider settings.
type ProviderConfig struct {
	Anthropic anthropic.Config `yaml:"anthropic"`
}

// Limit is one named rate limit: at most Requests calls per Window.
type Limit struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// ContextConfig bounds the context windows the service builds.
type ContextConfig struct {
	MaxMessages int `yaml:"max_messages,omitempty"`
	MaxTokens   int `yaml:"max_tokens,omitempty"`
	MaxImages   int `yaml:"max_images,omitempty"`
}

// SummarizationConfig controls automatic history compression.
type SummarizationConfig struct {
	// Threshold is the running token estimate at which a channel becomes
	// due for summarization. 0 disables auto-summarization.
	Threshold int `yaml:"threshold,omitempty"`
}

// TelemetryConfig holds optional observability settings.
type TelemetryConfig struct {
	// OTLPEndpoint enables trace export to the given OTLP/HTTP endpoint.
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
}

// MaintenanceConfig tunes the background cleanup jobs.
type MaintenanceConfig struct {
	// PruneInterval is how often idle per-channel state is evicted.
	// Defaults to hourly.
	PruneInterval Duration `yaml:"prune_interval,omitempty"`

	// MaxIdle is how long a channel may sit untouched before its
	// transient state is dropped. Defaults to 24h.
	MaxIdle Duration `yaml:"max_idle,omitempty"`
}

// Default settings applied by Defaults.
const (
	defaultListen        = "127.0.0.1:8420"
	defaultDriver        = "memory"
	defaultPruneInterval = time.Hour
	defaultMaxIdle       = 24 * time.Hour
)

// Defaults fills in zero-value fields with sensible defaults.
func (c *Config) Defaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = defaultListen
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = defaultDriver
	}
	if c.Maintenance.PruneInterval == 0 {
		c.Maintenance.PruneInterval = Duration(defaultPruneInterval)
	}
	if c.Maintenance.MaxIdle == 0 {
		c.Maintenance.MaxIdle = Duration(defaultMaxIdle)
	}
}
