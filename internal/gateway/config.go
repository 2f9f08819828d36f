package gateway

import "time"

// Config holds HTTP gateway configuration.
type Config struct {
	// Bind is the host:port the server listens on.
	Bind string

	// AuthToken, when set, requires a matching bearer token on every
	// /v1 request. Health and metrics stay open.
	AuthToken string

	// Limits maps resource names ("chat", "summarize") to per-channel
	// rate limits. A missing resource is unlimited.
	Limits map[string]Limit

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Limit is one per-channel rate limit: at most Requests calls per Window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8420"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}
