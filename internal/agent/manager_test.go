package agent

import (
	"testing"

	"github.com/fluxbyte/chatgate/internal/cache"
)

func TestGetOrCreate(t *testing.T) {
	m := NewManager(cache.NewAgentCache(10), 0.7, 2000)

	first := m.GetOrCreate(Spec{ID: "agent-1", AuthID: "auth-1", Name: "helper", SystemPrompt: "Be brief."})
	if first.ID != "agent-1" {
		t.Errorf("ID = %q, want agent-1", first.ID)
	}
	if got := first.SystemPrompt(); got != "Be brief." {
		t.Errorf("SystemPrompt() = %q", got)
	}
	if got := first.PresetFloat("temperature", 0); got != 0.7 {
		t.Errorf("temperature preset = %v, want 0.7", got)
	}
	if got := first.PresetFloat("max_tokens", 0); got != 2000 {
		t.Errorf("max_tokens preset = %v, want 2000", got)
	}

	// A second reference resolves from the cache; the spec is ignored.
	second := m.GetOrCreate(Spec{ID: "agent-1", SystemPrompt: "Something else."})
	if second != first {
		t.Error("second reference should return the cached agent")
	}
	if got := second.SystemPrompt(); got != "Be brief." {
		t.Errorf("SystemPrompt() = %q, cached preset should win", got)
	}
}

func TestGetOrCreateMintsID(t *testing.T) {
	m := NewManager(cache.NewAgentCache(10), 0.7, 2000)

	a := m.GetOrCreate(Spec{AuthID: "auth-1"})
	if a.ID == "" {
		t.Fatal("agent without an id should get one minted")
	}
	b := m.GetOrCreate(Spec{AuthID: "auth-1"})
	if b.ID == a.ID {
		t.Error("each anonymous spec should mint a distinct agent")
	}
}

func TestGetOrCreateDefaultPrompt(t *testing.T) {
	m := NewManager(cache.NewAgentCache(10), 0.7, 2000)

	a := m.GetOrCreate(Spec{ID: "agent-1"})
	if got := a.SystemPrompt(); got == "" {
		t.Error("SystemPrompt() must never be empty")
	}
}
