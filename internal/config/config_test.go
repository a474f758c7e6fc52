package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8765 {
		t.Errorf("listener = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Cache.MaxAgents != 50 || cfg.Cache.MaxChats != 100 {
		t.Errorf("cache sizes = %d/%d", cfg.Cache.MaxAgents, cfg.Cache.MaxChats)
	}
	if cfg.Cache.MaxContextMessages != 20 {
		t.Errorf("MaxContextMessages = %d", cfg.Cache.MaxContextMessages)
	}
	if !cfg.SlidingWindow() {
		t.Error("sliding window should be the default strategy")
	}
	if cfg.LLM.Model != "llama-3.3-70b-versatile" {
		t.Errorf("Model = %q", cfg.LLM.Model)
	}
	if cfg.HeartbeatInterval() != 30*time.Second {
		t.Errorf("HeartbeatInterval = %v", cfg.HeartbeatInterval())
	}
	if cfg.ConnectionTimeout() != 300*time.Second {
		t.Errorf("ConnectionTimeout = %v", cfg.ConnectionTimeout())
	}
	if cfg.StreamMaxDelay() != 300*time.Millisecond {
		t.Errorf("StreamMaxDelay = %v", cfg.StreamMaxDelay())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8765 {
		t.Errorf("Port = %d, want default", cfg.Server.Port)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	// JSON5 allows comments and trailing commas.
	data := `{
		// local overrides
		server: {port: 9000},
		llm: {api_key: "from-file", model: "other-model",},
	}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.LLM.APIKey != "from-file" || cfg.LLM.Model != "other-model" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	// Untouched sections keep defaults.
	if cfg.Cache.MaxChats != 100 {
		t.Errorf("MaxChats = %d, want default", cfg.Cache.MaxChats)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WS_PORT", "9100")
	t.Setenv("GROQ_API_KEY", "from-env")
	t.Setenv("MAX_CONTEXT_MESSAGES", "7")
	t.Setenv("STREAM_MAX_DELAY", "0.5")
	t.Setenv("CONTEXT_STRATEGY", "full")
	t.Setenv("LLM_MAX_TOKENS", "not a number") // ignored

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.LLM.APIKey != "from-env" {
		t.Errorf("APIKey = %q", cfg.LLM.APIKey)
	}
	if cfg.Cache.MaxContextMessages != 7 {
		t.Errorf("MaxContextMessages = %d, want 7", cfg.Cache.MaxContextMessages)
	}
	if cfg.StreamMaxDelay() != 500*time.Millisecond {
		t.Errorf("StreamMaxDelay = %v, want 500ms", cfg.StreamMaxDelay())
	}
	if cfg.SlidingWindow() {
		t.Error("CONTEXT_STRATEGY=full should disable the sliding window")
	}
	if cfg.LLM.MaxTokens != 2000 {
		t.Errorf("MaxTokens = %d, want default kept on bad env value", cfg.LLM.MaxTokens)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{server: {port: 9000}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WS_PORT", "9200")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("Port = %d, want env to win", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate() = %v, want ErrMissingAPIKey", err)
	}
	cfg.LLM.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}
