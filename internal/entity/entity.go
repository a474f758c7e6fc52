// Package entity holds the value types the caches operate on: agents with
// their nested configs, chats, messages, and in-memory chat sessions.
package entity

import (
	"time"
	"unicode/utf8"
)

// SenderKind tags a message participant. The wire carries free-form strings;
// ParseSenderKind closes them into the two known kinds.
type SenderKind string

const (
	KindAuth  SenderKind = "AUTH"
	KindAgent SenderKind = "AGENT"
)

// ParseSenderKind maps a wire sender_type to a SenderKind.
// Anything that is not AGENT is treated as a user.
func ParseSenderKind(s string) SenderKind {
	if s == string(KindAgent) {
		return KindAgent
	}
	return KindAuth
}

// DefaultSystemPrompt is returned when an agent has no usable preset.
const DefaultSystemPrompt = "You are a helpful assistant."

// Agent is a cached agent configuration.
type Agent struct {
	ID          string
	AuthID      string
	Name        string
	Description string
	CategoryID  string
	Config      *AgentConfig
	CreatedAt   time.Time
	LastUsedAt  time.Time
}

// AgentConfig owns the agent's system preset.
type AgentConfig struct {
	ID     string
	System *AgentSystem
}

// AgentSystem holds the preset mapping. system_prompt is the only key the
// gateway reads directly; temperature and max_tokens are forwarded to the
// LLM request when present.
type AgentSystem struct {
	ID     string
	Preset map[string]interface{}
}

// SystemPrompt returns the preset system prompt, or DefaultSystemPrompt when
// the preset chain is missing or empty. Never returns "".
func (a *Agent) SystemPrompt() string {
	if a.Config == nil || a.Config.System == nil {
		return DefaultSystemPrompt
	}
	if v, ok := a.Config.System.Preset["system_prompt"]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return DefaultSystemPrompt
}

// PresetFloat returns a numeric preset value, or def when absent.
func (a *Agent) PresetFloat(key string, def float64) float64 {
	if a.Config == nil || a.Config.System == nil {
		return def
	}
	switch v := a.Config.System.Preset[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// Message is one turn in a chat. Append-only within a session.
type Message struct {
	ID           string
	ContentID    string
	ChatID       string
	SenderID     string
	SenderKind   SenderKind
	ReceiverID   string
	ReceiverKind SenderKind
	Content      string
	CreatedAt    time.Time
}

// EstimatedTokens is the cheap character-based token estimate used for
// session size bounds. Roughly 4 characters per token.
func (m *Message) EstimatedTokens() int {
	return utf8.RuneCountInString(m.Content) / 4
}

// Chat identifies a conversation and its participants.
type Chat struct {
	ID           string
	AgentID      string
	AuthID       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastAccessAt time.Time
}
