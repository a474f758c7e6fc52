// Package config holds gateway configuration: defaults, an optional JSON5
// config file, and environment overrides, in increasing precedence.
package config

import "time"

// Config is the full gateway configuration.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Cache     CacheConfig     `json:"cache"`
	LLM       LLMConfig       `json:"llm"`
	Stream    StreamConfig    `json:"stream"`
	Telemetry TelemetryConfig `json:"telemetry"`
}

// ServerConfig covers the listener and connection lifecycle.
type ServerConfig struct {
	Host              string `json:"host"`
	Port              int    `json:"port"`
	HeartbeatInterval int    `json:"heartbeat_interval"` // seconds between pings
	ConnectionTimeout int    `json:"connection_timeout"` // idle seconds before eviction
}

// CacheConfig bounds the agent and chat caches.
type CacheConfig struct {
	MaxAgents          int    `json:"max_agents"`
	MaxChats           int    `json:"max_chats"`
	MaxChatMessages    int    `json:"max_chat_messages"`
	MaxChatTokens      int    `json:"max_chat_tokens"`
	MaxContextMessages int    `json:"max_context_messages"`
	DesyncSlack        int    `json:"desync_slack"`
	ContextStrategy    string `json:"context_strategy"` // "sliding_window" or anything else for full history
}

// LLMConfig selects the completion provider.
type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	APIBase     string  `json:"api_base"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// StreamConfig tunes the token flush buffer.
type StreamConfig struct {
	MinChunkSize int     `json:"min_chunk_size"`
	MaxDelay     float64 `json:"max_delay"` // seconds
}

// TelemetryConfig enables OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint"`
	Protocol    string `json:"protocol"` // "grpc" (default) or "http"
	ServiceName string `json:"service_name"`
	Insecure    bool   `json:"insecure"`
}

// HeartbeatInterval returns the ping interval as a duration.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Server.HeartbeatInterval) * time.Second
}

// ConnectionTimeout returns the idle eviction threshold as a duration.
func (c *Config) ConnectionTimeout() time.Duration {
	return time.Duration(c.Server.ConnectionTimeout) * time.Second
}

// StreamMaxDelay returns the flush delay as a duration.
func (c *Config) StreamMaxDelay() time.Duration {
	return time.Duration(c.Stream.MaxDelay * float64(time.Second))
}

// SlidingWindow reports whether context assembly uses the sliding window.
func (c *Config) SlidingWindow() bool {
	return c.Cache.ContextStrategy == "sliding_window"
}
