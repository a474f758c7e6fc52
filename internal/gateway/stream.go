package gateway

import (
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/fluxbyte/chatgate/pkg/protocol"
)

// wordBoundaries are the characters a flush prefers to break on, so partial
// frames end on word or sentence edges.
const wordBoundaries = " \t\n.,!?;:-"

// StreamBuffer accumulates model tokens for one chat turn and flushes them
// to the client as partial frames. A flush happens when any of these holds:
//
//  1. maxDelay has elapsed since the last send, or
//  2. the buffer is at least minChunk chars and ends on a word boundary, or
//  3. the buffer reached twice minChunk (hard ceiling).
//
// A dead transport stops the partial stream but never the model call; the
// caller still gets the accumulated full response from Complete.
type StreamBuffer struct {
	send     func(protocol.StreamFrame) error
	chatID   string
	agentID  string
	minChunk int
	maxDelay time.Duration

	full     strings.Builder
	buf      string
	lastSend time.Time
	dead     bool

	now func() time.Time // stubbed in tests
}

// NewStreamBuffer creates a buffer for one turn. send delivers one frame to
// the transport.
func NewStreamBuffer(chatID, agentID string, minChunk int, maxDelay time.Duration, send func(protocol.StreamFrame) error) *StreamBuffer {
	sb := &StreamBuffer{
		send:     send,
		chatID:   chatID,
		agentID:  agentID,
		minChunk: minChunk,
		maxDelay: maxDelay,
		now:      time.Now,
	}
	sb.lastSend = sb.now()
	return sb
}

// OnToken appends one model token and flushes if a flush condition holds.
func (sb *StreamBuffer) OnToken(token string) {
	if token == "" {
		return
	}
	sb.full.WriteString(token)
	sb.buf += token

	if sb.shouldFlush() {
		sb.flush()
	}
}

func (sb *StreamBuffer) shouldFlush() bool {
	if sb.now().Sub(sb.lastSend) >= sb.maxDelay {
		return true
	}
	n := utf8.RuneCountInString(sb.buf)
	if n >= sb.minChunk {
		last, _ := utf8.DecodeLastRuneInString(sb.buf)
		if strings.ContainsRune(wordBoundaries, last) {
			return true
		}
	}
	return n >= 2*sb.minChunk
}

func (sb *StreamBuffer) flush() {
	defer func() {
		sb.buf = ""
		sb.lastSend = sb.now()
	}()

	if sb.dead || sb.buf == "" {
		return
	}
	err := sb.send(protocol.StreamFrame{
		ChatUUID:  sb.chatID,
		AgentUUID: sb.agentID,
		Content:   sb.buf,
		Partial:   true,
	})
	if err != nil {
		slog.Warn("stream send failed", "chat", sb.chatID, "error", err)
		sb.dead = true
	}
}

// Complete flushes any remaining buffer, emits the terminal frame with the
// full response and freshly minted message identifiers, and returns the full
// response with those identifiers.
func (sb *StreamBuffer) Complete() (full, messageUUID, contentUUID string) {
	sb.flush()

	full = sb.full.String()
	messageUUID = uuid.NewString()
	contentUUID = uuid.NewString()

	if !sb.dead {
		err := sb.send(protocol.StreamFrame{
			ChatUUID:           sb.chatID,
			AgentUUID:          sb.agentID,
			Content:            full,
			Partial:            false,
			MessageUUID:        messageUUID,
			MessageContentUUID: contentUUID,
		})
		if err != nil {
			slog.Warn("terminal send failed", "chat", sb.chatID, "error", err)
			sb.dead = true
		}
	}
	return full, messageUUID, contentUUID
}
