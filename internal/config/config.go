package config

import "time"

// Config holds client configuration values.
type Config struct {
	// APIBase is the root of the chat backend's HTTP surface.
	APIBase string `mapstructure:"api_base" yaml:"api_base"`
	// WindowSize bounds the in-memory message window.
	WindowSize int `mapstructure:"window_size" yaml:"window_size"`
	// HeartbeatInterval paces presence beats; zero disables them.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	// StreamRetry is the reconnect delay floor; the server may override
	// it per connection with an SSE retry hint.
	StreamRetry time.Duration `mapstructure:"stream_retry" yaml:"stream_retry"`
	LogLevel    string        `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		APIBase:           "http://localhost:8080/api",
		WindowSize:        200,
		HeartbeatInterval: 20 * time.Second,
		StreamRetry:       3 * time.Second,
		LogLevel:          "info",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.APIBase != "" {
		c.APIBase = other.APIBase
	}
	if other.WindowSize != 0 {
		c.WindowSize = other.WindowSize
	}
	if other.HeartbeatInterval != 0 {
		c.HeartbeatInterval = other.HeartbeatInterval
	}
	if other.StreamRetry != 0 {
		c.StreamRetry = other.StreamRetry
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}
