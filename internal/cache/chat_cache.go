package cache

import (
	"container/list"
	"sync"

	"github.com/fluxbyte/chatgate/internal/entity"
	"github.com/fluxbyte/chatgate/internal/providers"
)

// SyncMode selects how an external history snapshot is reconciled into a
// cached session.
type SyncMode string

const (
	SyncAuto        SyncMode = "auto"
	SyncFull        SyncMode = "full"
	SyncIncremental SyncMode = "incremental"
)

// ParseSyncMode maps a wire sync_mode to a SyncMode; unknown values fall
// back to auto.
func ParseSyncMode(s string) SyncMode {
	switch SyncMode(s) {
	case SyncFull, SyncIncremental:
		return SyncMode(s)
	}
	return SyncAuto
}

// DefaultDesyncSlack is how many messages the external store may be ahead of
// the last synced count before auto mode gives up on incremental append.
const DefaultDesyncSlack = 10

// ChatCacheConfig bounds the cache and its sessions.
type ChatCacheConfig struct {
	Capacity      int // max cached sessions
	MaxMessages   int // per-session message bound
	MaxTokens     int // per-session estimated-token bound
	ContextWindow int // messages assembled into LLM context
	DesyncSlack   int
}

// ChatCacheStats is the snapshot reported on the stats command.
type ChatCacheStats struct {
	Size               int     `json:"size"`
	Capacity           int     `json:"capacity"`
	UtilizationPct     float64 `json:"utilization_pct"`
	Hits               int64   `json:"hits"`
	Misses             int64   `json:"misses"`
	HitRatePct         float64 `json:"hit_rate_pct"`
	FullReloads        int64   `json:"full_reloads"`
	IncrementalUpdates int64   `json:"incremental_updates"`
	LRUEvictions       int64   `json:"lru_evictions"`
	SizeEvictions      int64   `json:"size_evictions"`
	TotalEvictions     int64   `json:"total_evictions"`
	TotalMessages      int     `json:"total_messages"`
	AvgMessagesPerChat float64 `json:"avg_messages_per_chat"`
	LargestChatUUID    string  `json:"largest_chat_uuid,omitempty"`
	LargestChatSize    int     `json:"largest_chat_size"`
	MaxMessages        int     `json:"max_messages"`
	MaxTokens          int     `json:"max_tokens"`
}

// SessionStats describes one cached session.
type SessionStats struct {
	ChatUUID         string `json:"chat_uuid"`
	MessageCount     int    `json:"message_count"`
	EstimatedTokens  int    `json:"estimated_tokens"`
	LastMessageCount int    `json:"last_message_count"`
}

type chatEntry struct {
	id      string
	session *entity.ChatSession
}

// ChatCache is a bounded LRU of chat id → session, with per-session size
// bounds enforced after every external sync.
type ChatCache struct {
	mu  sync.Mutex
	cfg ChatCacheConfig

	items map[string]*list.Element
	lru   *list.List

	hits               int64
	misses             int64
	fullReloads        int64
	incrementalUpdates int64
	lruEvictions       int64
	sizeEvictions      int64
}

// NewChatCache creates a cache with the given bounds. Zero values pick the
// service defaults.
func NewChatCache(cfg ChatCacheConfig) *ChatCache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 100
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 200
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 50000
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 20
	}
	if cfg.DesyncSlack <= 0 {
		cfg.DesyncSlack = DefaultDesyncSlack
	}
	return &ChatCache{
		cfg:   cfg,
		items: make(map[string]*list.Element),
		lru:   list.New(),
	}
}

// GetOrCreate returns the session for chatID, creating an empty one (and
// evicting the LRU session if at capacity) when absent.
func (c *ChatCache) GetOrCreate(chatID, agentID, authID string) *entity.ChatSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getOrCreateLocked(chatID, agentID, authID)
}

func (c *ChatCache) getOrCreateLocked(chatID, agentID, authID string) *entity.ChatSession {
	if elem, ok := c.items[chatID]; ok {
		c.lru.MoveToFront(elem)
		c.hits++
		sess := elem.Value.(*chatEntry).session
		sess.Touch()
		return sess
	}

	c.misses++
	if c.lru.Len() >= c.cfg.Capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			entry := oldest.Value.(*chatEntry)
			c.lru.Remove(oldest)
			delete(c.items, entry.id)
			c.lruEvictions++
		}
	}

	sess := entity.NewChatSession(chatID, agentID, authID)
	c.items[chatID] = c.lru.PushFront(&chatEntry{id: chatID, session: sess})
	return sess
}

// SyncMessages reconciles an authoritative history snapshot into the cached
// session.
//
// Auto mode reloads an empty session, reloads on desync (snapshot shorter
// than the last synced count, or more than DesyncSlack longer), and appends
// the snapshot suffix otherwise. A reload sorts the snapshot by created_at;
// an incremental append trusts the snapshot's order for the new suffix.
//
// After the sync, a session over its message or token bound is evicted and
// recreated holding only the last ContextWindow messages of the snapshot.
// That recovery is lossy on purpose: the external store remains the
// authority, the cache only needs enough tail to assemble context.
func (c *ChatCache) SyncMessages(chatID, agentID, authID string, incoming []entity.Message, mode SyncMode) *entity.ChatSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.getOrCreateLocked(chatID, agentID, authID)

	full := false
	switch mode {
	case SyncFull:
		full = true
	case SyncIncremental:
		full = false
	default:
		full = sess.NeedsFullReload(len(incoming), c.cfg.DesyncSlack)
	}

	if full {
		sess.LoadHistory(incoming)
		c.fullReloads++
	} else {
		if len(incoming) > len(sess.Messages) {
			for _, msg := range incoming[len(sess.Messages):] {
				sess.Append(msg)
			}
		}
		sess.LastMessageCount = len(sess.Messages)
		c.incrementalUpdates++
	}

	return c.enforceSizeLocked(sess, incoming)
}

// enforceSizeLocked applies the per-session bounds, replacing an oversize
// session with one holding only the snapshot tail.
func (c *ChatCache) enforceSizeLocked(sess *entity.ChatSession, snapshot []entity.Message) *entity.ChatSession {
	if len(sess.Messages) <= c.cfg.MaxMessages && sess.EstimatedTokens() <= c.cfg.MaxTokens {
		return sess
	}

	chatID := sess.Chat.ID
	if elem, ok := c.items[chatID]; ok {
		c.lru.Remove(elem)
		delete(c.items, chatID)
	}
	c.sizeEvictions++

	fresh := c.getOrCreateLocked(chatID, sess.Chat.AgentID, sess.Chat.AuthID)
	tail := snapshot
	if len(tail) > c.cfg.ContextWindow {
		tail = tail[len(tail)-c.cfg.ContextWindow:]
	}
	fresh.LoadHistory(tail)
	return fresh
}

// AddMessage appends msg to its session, creating the session if absent.
// No oversize check: runtime appends are reconciled by the next sync.
func (c *ChatCache) AddMessage(msg entity.Message, agentID, authID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.getOrCreateLocked(msg.ChatID, agentID, authID)
	sess.Append(msg)
}

// AssembleContext builds the LLM message list for a turn: the system prompt
// first, then the session tail (last ContextWindow messages when sliding,
// the whole history otherwise) with agent turns as assistant and everything
// else as user.
func (c *ChatCache) AssembleContext(chatID, agentID, authID, systemPrompt string, sliding bool) []providers.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.getOrCreateLocked(chatID, agentID, authID)

	msgs := sess.Messages
	if sliding && len(msgs) > c.cfg.ContextWindow {
		msgs = msgs[len(msgs)-c.cfg.ContextWindow:]
	}

	out := make([]providers.Message, 0, len(msgs)+1)
	out = append(out, providers.Message{Role: "system", Content: systemPrompt})
	for i := range msgs {
		role := "user"
		if msgs[i].SenderKind == entity.KindAgent {
			role = "assistant"
		}
		out = append(out, providers.Message{Role: role, Content: msgs[i].Content})
	}
	return out
}

// SessionStats returns per-session counters, or nil if the chat is not
// cached. Does not promote the entry.
func (c *ChatCache) SessionStats(chatID string) *SessionStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[chatID]
	if !ok {
		return nil
	}
	sess := elem.Value.(*chatEntry).session
	return &SessionStats{
		ChatUUID:         chatID,
		MessageCount:     len(sess.Messages),
		EstimatedTokens:  sess.EstimatedTokens(),
		LastMessageCount: sess.LastMessageCount,
	}
}

// Stats returns a snapshot of cache-wide counters.
func (c *ChatCache) Stats() ChatCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := ChatCacheStats{
		Size:               c.lru.Len(),
		Capacity:           c.cfg.Capacity,
		UtilizationPct:     float64(c.lru.Len()) / float64(c.cfg.Capacity) * 100,
		Hits:               c.hits,
		Misses:             c.misses,
		FullReloads:        c.fullReloads,
		IncrementalUpdates: c.incrementalUpdates,
		LRUEvictions:       c.lruEvictions,
		SizeEvictions:      c.sizeEvictions,
		TotalEvictions:     c.lruEvictions + c.sizeEvictions,
		MaxMessages:        c.cfg.MaxMessages,
		MaxTokens:          c.cfg.MaxTokens,
	}

	for id, elem := range c.items {
		n := len(elem.Value.(*chatEntry).session.Messages)
		stats.TotalMessages += n
		if n > stats.LargestChatSize {
			stats.LargestChatSize = n
			stats.LargestChatUUID = id
		}
	}
	if stats.Size > 0 {
		stats.AvgMessagesPerChat = float64(stats.TotalMessages) / float64(stats.Size)
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRatePct = float64(c.hits) / float64(total) * 100
	}
	return stats
}
