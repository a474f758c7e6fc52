// Package cache implements the two bounded LRU caches at the heart of the
// gateway: agent configurations and chat sessions.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/fluxbyte/chatgate/internal/entity"
)

// AgentCacheStats is the snapshot reported on the stats command.
type AgentCacheStats struct {
	Size           int     `json:"size"`
	Capacity       int     `json:"capacity"`
	UtilizationPct float64 `json:"utilization_pct"`
	TotalEvictions int64   `json:"total_evictions"`
}

type agentEntry struct {
	id    string
	agent *entity.Agent
}

// AgentCache is a bounded LRU of agent id → agent. The front of the list is
// the most recently used entry.
type AgentCache struct {
	mu        sync.Mutex
	capacity  int
	items     map[string]*list.Element
	lru       *list.List
	evictions int64
}

// NewAgentCache creates a cache holding at most capacity agents.
func NewAgentCache(capacity int) *AgentCache {
	if capacity <= 0 {
		capacity = 50
	}
	return &AgentCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the agent and promotes it, or nil if absent.
func (c *AgentCache) Get(id string) *entity.Agent {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[id]
	if !ok {
		return nil
	}
	c.lru.MoveToFront(elem)
	agent := elem.Value.(*agentEntry).agent
	agent.LastUsedAt = time.Now()
	return agent
}

// Put inserts or replaces an agent as most recently used, evicting the LRU
// entry when the cache is full.
func (c *AgentCache) Put(agent *entity.Agent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[agent.ID]; ok {
		elem.Value.(*agentEntry).agent = agent
		c.lru.MoveToFront(elem)
		return
	}

	if c.lru.Len() >= c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			entry := oldest.Value.(*agentEntry)
			c.lru.Remove(oldest)
			delete(c.items, entry.id)
			c.evictions++
		}
	}

	c.items[agent.ID] = c.lru.PushFront(&agentEntry{id: agent.ID, agent: agent})
}

// Len returns the current number of cached agents.
func (c *AgentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of cache counters.
func (c *AgentCache) Stats() AgentCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return AgentCacheStats{
		Size:           c.lru.Len(),
		Capacity:       c.capacity,
		UtilizationPct: float64(c.lru.Len()) / float64(c.capacity) * 100,
		TotalEvictions: c.evictions,
	}
}
