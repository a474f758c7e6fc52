// Package agent provides the create-or-fetch façade over the agent cache.
package agent

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fluxbyte/chatgate/internal/cache"
	"github.com/fluxbyte/chatgate/internal/entity"
)

// Spec describes an agent as referenced by a chat turn. Only ID is required;
// the rest seeds a fresh agent on first reference.
type Spec struct {
	ID           string
	AuthID       string
	Name         string
	Description  string
	CategoryID   string
	SystemPrompt string
}

// Manager resolves agent references against the cache, creating new agents
// on first use.
type Manager struct {
	cache       *cache.AgentCache
	temperature float64
	maxTokens   int
}

// NewManager creates a manager with the default LLM sampling parameters
// baked into new agent presets.
func NewManager(c *cache.AgentCache, temperature float64, maxTokens int) *Manager {
	return &Manager{cache: c, temperature: temperature, maxTokens: maxTokens}
}

// GetOrCreate returns the cached agent for spec.ID, or builds, caches, and
// returns a fresh one.
func (m *Manager) GetOrCreate(spec Spec) *entity.Agent {
	if spec.ID != "" {
		if agent := m.cache.Get(spec.ID); agent != nil {
			return agent
		}
	}

	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}

	preset := map[string]interface{}{
		"temperature": m.temperature,
		"max_tokens":  m.maxTokens,
	}
	if spec.SystemPrompt != "" {
		preset["system_prompt"] = spec.SystemPrompt
	}

	now := time.Now()
	agent := &entity.Agent{
		ID:          id,
		AuthID:      spec.AuthID,
		Name:        spec.Name,
		Description: spec.Description,
		CategoryID:  spec.CategoryID,
		Config: &entity.AgentConfig{
			ID: uuid.NewString(),
			System: &entity.AgentSystem{
				ID:     uuid.NewString(),
				Preset: preset,
			},
		},
		CreatedAt:  now,
		LastUsedAt: now,
	}

	m.cache.Put(agent)
	slog.Info("agent created", "agent", id, "auth", spec.AuthID, "name", spec.Name)
	return agent
}
