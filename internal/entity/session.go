package entity

import (
	"sort"
	"time"
)

// ChatSession is an in-memory conversation: a Chat plus its messages in
// created_at order. LastMessageCount records the length as of the most
// recent external history sync and drives desync detection.
type ChatSession struct {
	Chat             Chat
	Messages         []Message
	LastMessageCount int
}

// NewChatSession creates an empty session.
func NewChatSession(chatID, agentID, authID string) *ChatSession {
	now := time.Now()
	return &ChatSession{
		Chat: Chat{
			ID:           chatID,
			AgentID:      agentID,
			AuthID:       authID,
			CreatedAt:    now,
			UpdatedAt:    now,
			LastAccessAt: now,
		},
	}
}

// LoadHistory replaces the session's messages with the given snapshot,
// sorted by created_at ascending, and records the synced length.
func (s *ChatSession) LoadHistory(msgs []Message) {
	sorted := make([]Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	s.Messages = sorted
	s.LastMessageCount = len(sorted)
	s.Chat.UpdatedAt = time.Now()
}

// Append adds one message to the tail. Runtime appends (the user turn, the
// model's reply) do not advance LastMessageCount; the next external sync
// reconciles.
func (s *ChatSession) Append(msg Message) {
	s.Messages = append(s.Messages, msg)
	s.Chat.UpdatedAt = time.Now()
}

// Touch marks the session as accessed.
func (s *ChatSession) Touch() {
	s.Chat.LastAccessAt = time.Now()
}

// NeedsFullReload reports whether an incoming snapshot of the given length
// indicates the cache has drifted from the external store. An empty session
// always reloads. Otherwise a snapshot shorter than the last synced count,
// or more than slack messages longer, signals desync.
func (s *ChatSession) NeedsFullReload(incoming, slack int) bool {
	if len(s.Messages) == 0 {
		return true
	}
	return incoming < s.LastMessageCount || incoming > s.LastMessageCount+slack
}

// EstimatedTokens sums the per-message estimates.
func (s *ChatSession) EstimatedTokens() int {
	total := 0
	for i := range s.Messages {
		total += s.Messages[i].EstimatedTokens()
	}
	return total
}
