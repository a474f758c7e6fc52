// Package protocol defines the JSON frames exchanged between chatgate
// and its WebSocket clients.
package protocol

import (
	"encoding/json"
	"time"
)

// Client commands. A frame without a command is a chat turn.
const (
	CommandIdentify = "identify"
	CommandStats    = "stats"
)

// History sync modes.
const (
	SyncModeAuto        = "auto"
	SyncModeFull        = "full"
	SyncModeIncremental = "incremental"
)

// ClientFrame is a single client → server message.
type ClientFrame struct {
	Command string `json:"command,omitempty"`

	// identify
	AuthUUID string `json:"auth_uuid,omitempty"`

	// chat turn
	ChatUUID         string        `json:"chat_uuid,omitempty"`
	Content          string        `json:"content,omitempty"`
	SenderUUID       string        `json:"sender_uuid,omitempty"`
	SenderType       string        `json:"sender_type,omitempty"`
	ReceiverUUID     string        `json:"receiver_uuid,omitempty"`
	ReceiverType     string        `json:"receiver_type,omitempty"`
	AgentUUID        string        `json:"agent_uuid,omitempty"`
	AgentName        string        `json:"agent_name,omitempty"`
	AgentDescription string        `json:"agent_description,omitempty"`
	CategoryID       string        `json:"category_id,omitempty"`
	SystemPrompt     string        `json:"system_prompt,omitempty"`
	ChatHistory      []HistoryItem `json:"chat_history,omitempty"`
	SyncMode         string        `json:"sync_mode,omitempty"`
}

// HistoryItem is one element of a chat_history snapshot from the external
// message store. The store emits two shapes: a literal "content" string, or
// the content nested under "MessageContent.Content". UnmarshalJSON
// normalizes both into Content; unknown fields are ignored.
type HistoryItem struct {
	MessageUUID        string
	MessageContentUUID string
	SenderUUID         string
	SenderType         string
	ReceiverUUID       string
	ReceiverType       string
	Content            string
	CreatedAt          time.Time
}

type historyItemWire struct {
	MessageUUID        string `json:"message_uuid"`
	MessageContentUUID string `json:"message_content_uuid"`
	SenderUUID         string `json:"sender_uuid"`
	SenderType         string `json:"sender_type"`
	ReceiverUUID       string `json:"receiver_uuid"`
	ReceiverType       string `json:"receiver_type"`
	Content            string `json:"content"`
	MessageContent     struct {
		UUID    string `json:"UUID"`
		Content string `json:"Content"`
	} `json:"MessageContent"`
	CreatedAt string `json:"created_at"`
}

func (h *HistoryItem) UnmarshalJSON(data []byte) error {
	var w historyItemWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	h.MessageUUID = w.MessageUUID
	h.MessageContentUUID = w.MessageContentUUID
	h.SenderUUID = w.SenderUUID
	h.SenderType = w.SenderType
	h.ReceiverUUID = w.ReceiverUUID
	h.ReceiverType = w.ReceiverType

	h.Content = w.Content
	if h.Content == "" {
		h.Content = w.MessageContent.Content
	}
	if h.MessageContentUUID == "" {
		h.MessageContentUUID = w.MessageContent.UUID
	}

	h.CreatedAt = parseTimestamp(w.CreatedAt)
	return nil
}

// MarshalJSON emits the literal-content wire shape.
func (h HistoryItem) MarshalJSON() ([]byte, error) {
	out := struct {
		MessageUUID        string `json:"message_uuid,omitempty"`
		MessageContentUUID string `json:"message_content_uuid,omitempty"`
		SenderUUID         string `json:"sender_uuid"`
		SenderType         string `json:"sender_type"`
		ReceiverUUID       string `json:"receiver_uuid"`
		ReceiverType       string `json:"receiver_type,omitempty"`
		Content            string `json:"content"`
		CreatedAt          string `json:"created_at,omitempty"`
	}{
		MessageUUID:        h.MessageUUID,
		MessageContentUUID: h.MessageContentUUID,
		SenderUUID:         h.SenderUUID,
		SenderType:         h.SenderType,
		ReceiverUUID:       h.ReceiverUUID,
		ReceiverType:       h.ReceiverType,
		Content:            h.Content,
	}
	if !h.CreatedAt.IsZero() {
		out.CreatedAt = h.CreatedAt.Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

// Validate reports whether the item carries the fields sync requires.
func (h *HistoryItem) Validate() error {
	if h.SenderUUID == "" || h.SenderType == "" || h.ReceiverUUID == "" {
		return ErrBadHistoryItem
	}
	return nil
}

// parseTimestamp accepts the timestamp formats the external store has been
// observed to emit. Unparseable values yield the zero time; sorting treats
// those as oldest.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// StreamFrame is a server → client streaming message. Partial frames carry
// one buffered fragment; the terminal frame (Partial=false) carries the full
// response plus freshly minted message identifiers.
type StreamFrame struct {
	ChatUUID           string `json:"chat_uuid"`
	AgentUUID          string `json:"agent_uuid"`
	Content            string `json:"content"`
	Partial            bool   `json:"partial"`
	MessageUUID        string `json:"message_uuid,omitempty"`
	MessageContentUUID string `json:"message_content_uuid,omitempty"`
}

// IdentifiedFrame acknowledges an identify command.
type IdentifiedFrame struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id"`
}

// StatsFrame carries combined cache and connection-pool statistics.
type StatsFrame struct {
	Type           string      `json:"type"`
	AgentCache     interface{} `json:"agent_cache"`
	ChatCache      interface{} `json:"chat_cache"`
	ConnectionPool interface{} `json:"connection_pool"`
}

// ErrorFrame reports a per-frame failure. The connection stays open.
type ErrorFrame struct {
	Error        string `json:"error"`
	ChatUUID     string `json:"chat_uuid,omitempty"`
	ConnectionID string `json:"connection_id,omitempty"`
}
