package cache

import (
	"testing"

	"github.com/fluxbyte/chatgate/internal/entity"
)

func TestAgentCacheEvictsLRU(t *testing.T) {
	c := NewAgentCache(2)
	c.Put(&entity.Agent{ID: "a1"})
	c.Put(&entity.Agent{ID: "a2"})
	c.Put(&entity.Agent{ID: "a3"})

	if got := c.Get("a1"); got != nil {
		t.Error("a1 should have been evicted")
	}
	if got := c.Get("a2"); got == nil {
		t.Error("a2 should still be cached")
	}
	if got := c.Get("a3"); got == nil {
		t.Error("a3 should still be cached")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	stats := c.Stats()
	if stats.TotalEvictions != 1 {
		t.Errorf("TotalEvictions = %d, want 1", stats.TotalEvictions)
	}
}

func TestAgentCacheGetPromotes(t *testing.T) {
	c := NewAgentCache(2)
	c.Put(&entity.Agent{ID: "a1"})
	c.Put(&entity.Agent{ID: "a2"})

	// Touch a1 so a2 becomes the eviction victim.
	if c.Get("a1") == nil {
		t.Fatal("a1 missing before promotion test")
	}
	c.Put(&entity.Agent{ID: "a3"})

	if c.Get("a2") != nil {
		t.Error("a2 should have been evicted after a1 was promoted")
	}
	if c.Get("a1") == nil {
		t.Error("a1 should survive eviction")
	}
}

func TestAgentCachePutReplaces(t *testing.T) {
	c := NewAgentCache(2)
	c.Put(&entity.Agent{ID: "a1", Name: "first"})
	c.Put(&entity.Agent{ID: "a1", Name: "second"})

	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
	if got := c.Get("a1"); got == nil || got.Name != "second" {
		t.Errorf("Get(a1) = %+v, want replacement", got)
	}

	stats := c.Stats()
	if stats.TotalEvictions != 0 {
		t.Errorf("TotalEvictions = %d, want 0", stats.TotalEvictions)
	}
	if stats.UtilizationPct != 50 {
		t.Errorf("UtilizationPct = %v, want 50", stats.UtilizationPct)
	}
}
