package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// ErrMissingAPIKey is returned by Validate when no provider key is
// configured. Fatal at startup.
var ErrMissingAPIKey = errors.New("GROQ_API_KEY is required")

// Default returns a Config with the service defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8765,
			HeartbeatInterval: 30,
			ConnectionTimeout: 300,
		},
		Cache: CacheConfig{
			MaxAgents:          50,
			MaxChats:           100,
			MaxChatMessages:    200,
			MaxChatTokens:      50000,
			MaxContextMessages: 20,
			DesyncSlack:        10,
			ContextStrategy:    "sliding_window",
		},
		LLM: LLMConfig{
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.7,
			MaxTokens:   2000,
		},
		Stream: StreamConfig{
			MinChunkSize: 50,
			MaxDelay:     0.3,
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "chatgate",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error; env vars alone are a complete config.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = n
			}
		}
	}
	envFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				*dst = f
			}
		}
	}

	envStr("WS_HOST", &c.Server.Host)
	envInt("WS_PORT", &c.Server.Port)
	envInt("HEARTBEAT_INTERVAL", &c.Server.HeartbeatInterval)
	envInt("CONNECTION_TIMEOUT", &c.Server.ConnectionTimeout)

	envInt("MAX_AGENT_CACHE_SIZE", &c.Cache.MaxAgents)
	envInt("MAX_CHAT_CACHE_SIZE", &c.Cache.MaxChats)
	envInt("MAX_CHAT_MESSAGES", &c.Cache.MaxChatMessages)
	envInt("MAX_CHAT_TOKENS", &c.Cache.MaxChatTokens)
	envInt("MAX_CONTEXT_MESSAGES", &c.Cache.MaxContextMessages)
	envStr("CONTEXT_STRATEGY", &c.Cache.ContextStrategy)

	envStr("GROQ_API_KEY", &c.LLM.APIKey)
	envStr("LLM_MODEL", &c.LLM.Model)
	envFloat("LLM_TEMPERATURE", &c.LLM.Temperature)
	envInt("LLM_MAX_TOKENS", &c.LLM.MaxTokens)

	envInt("STREAM_MIN_CHUNK_SIZE", &c.Stream.MinChunkSize)
	envFloat("STREAM_MAX_DELAY", &c.Stream.MaxDelay)

	envStr("TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}
}

// Validate checks the startup invariants.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
