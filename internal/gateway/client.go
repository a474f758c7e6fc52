package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fluxbyte/chatgate/internal/agent"
	"github.com/fluxbyte/chatgate/internal/cache"
	"github.com/fluxbyte/chatgate/internal/entity"
	"github.com/fluxbyte/chatgate/internal/providers"
	"github.com/fluxbyte/chatgate/pkg/protocol"
)

var tracer = otel.Tracer("chatgate/gateway")

// pongWait is how long a heartbeat ping may go unanswered before the
// connection is torn down.
const pongWait = 10 * time.Second

// Client is one WebSocket session: the read loop, command dispatch, and the
// heartbeat.
type Client struct {
	id     string
	conn   *websocket.Conn
	server *Server

	writeMu sync.Mutex
	// busy is set while a chat turn is processed. Pong frames only surface
	// while the read loop is parked in ReadMessage, so the heartbeat must
	// not fault a connection that is busy inside a turn.
	busy   atomic.Bool
	pongCh chan struct{}
	done   chan struct{}
}

// NewClient wraps an accepted connection.
func NewClient(conn *websocket.Conn, server *Server) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		server: server,
		pongCh: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// ID returns the minted connection id.
func (c *Client) ID() string { return c.id }

// Close tears down the transport.
func (c *Client) Close() {
	c.conn.Close()
}

// Run registers the connection, starts the heartbeat, and consumes frames
// in arrival order until the transport closes.
func (c *Client) Run(ctx context.Context) {
	c.server.registry.Register(c.id, c.conn)
	defer func() {
		close(c.done)
		c.server.registry.Unregister(c.id)
		slog.Info("client disconnected", "id", c.id)
	}()

	slog.Info("client connected", "id", c.id)

	c.conn.SetPongHandler(func(string) error {
		select {
		case c.pongCh <- struct{}{}:
		default:
		}
		return nil
	})
	go c.heartbeat()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.server.registry.UpdateActivity(c.id, 0, 1)

		var frame protocol.ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.sendError(protocol.ErrorFrame{Error: protocol.ErrMalformedFrame.Error()})
			continue
		}

		c.dispatch(ctx, frame)
	}
}

func (c *Client) dispatch(ctx context.Context, frame protocol.ClientFrame) {
	switch frame.Command {
	case protocol.CommandIdentify:
		c.handleIdentify(frame)
	case protocol.CommandStats:
		c.handleStats()
	case "":
		c.busy.Store(true)
		c.handleChatTurn(ctx, frame)
		c.busy.Store(false)
	default:
		c.sendError(protocol.ErrorFrame{Error: "unknown command: " + frame.Command})
	}
}

func (c *Client) handleIdentify(frame protocol.ClientFrame) {
	if frame.AuthUUID == "" {
		c.sendError(protocol.ErrorFrame{Error: protocol.ErrMissingFields.Error()})
		return
	}
	c.server.registry.Identify(c.id, frame.AuthUUID)
	slog.Info("client identified", "id", c.id, "auth", frame.AuthUUID)
	c.sendJSON(protocol.IdentifiedFrame{Type: "identified", ConnectionID: c.id})
}

func (c *Client) handleStats() {
	c.sendJSON(protocol.StatsFrame{
		Type:           "stats",
		AgentCache:     c.server.agentCache.Stats(),
		ChatCache:      c.server.chats.Stats(),
		ConnectionPool: c.server.registry.Stats(),
	})
}

// handleChatTurn runs one turn: validate, resolve the agent, reconcile
// history, append the user message, stream the completion, append the
// reply. Any failure is replied on an error frame; the connection stays up.
func (c *Client) handleChatTurn(ctx context.Context, frame protocol.ClientFrame) {
	authID := c.server.registry.AuthID(c.id)
	if authID == "" {
		c.sendError(protocol.ErrorFrame{Error: protocol.ErrNotIdentified.Error()})
		return
	}

	if frame.ChatUUID == "" || frame.Content == "" || frame.SenderUUID == "" {
		c.sendError(protocol.ErrorFrame{Error: protocol.ErrMissingFields.Error()})
		return
	}

	if frame.SenderUUID != authID {
		slog.Warn("security.sender_mismatch", "id", c.id, "auth", authID, "sender", frame.SenderUUID)
		c.sendError(protocol.ErrorFrame{Error: protocol.ErrAuthMismatch.Error()})
		return
	}

	ctx, span := tracer.Start(ctx, "chat.turn")
	defer span.End()
	span.SetAttributes(
		attribute.String("chat.uuid", frame.ChatUUID),
		attribute.String("auth.uuid", authID),
	)

	agentID := frame.AgentUUID
	if agentID == "" {
		agentID = frame.ReceiverUUID
	}
	ag := c.server.agents.GetOrCreate(agent.Spec{
		ID:           agentID,
		AuthID:       authID,
		Name:         frame.AgentName,
		Description:  frame.AgentDescription,
		CategoryID:   frame.CategoryID,
		SystemPrompt: frame.SystemPrompt,
	})

	if len(frame.ChatHistory) > 0 {
		history, err := historyToMessages(frame.ChatUUID, frame.ChatHistory)
		if err != nil {
			c.sendError(protocol.ErrorFrame{Error: err.Error(), ChatUUID: frame.ChatUUID})
			return
		}
		c.server.chats.SyncMessages(frame.ChatUUID, ag.ID, authID, history, cache.ParseSyncMode(frame.SyncMode))
	}

	now := time.Now()
	c.server.chats.AddMessage(entity.Message{
		ID:           uuid.NewString(),
		ContentID:    uuid.NewString(),
		ChatID:       frame.ChatUUID,
		SenderID:     frame.SenderUUID,
		SenderKind:   entity.ParseSenderKind(frame.SenderType),
		ReceiverID:   ag.ID,
		ReceiverKind: entity.KindAgent,
		Content:      frame.Content,
		CreatedAt:    now,
	}, ag.ID, authID)

	cfg := c.server.cfg
	ctxMsgs := c.server.chats.AssembleContext(frame.ChatUUID, ag.ID, authID, ag.SystemPrompt(), cfg.SlidingWindow())

	sb := NewStreamBuffer(frame.ChatUUID, ag.ID, cfg.Stream.MinChunkSize, cfg.StreamMaxDelay(), c.sendStream)

	req := providers.ChatRequest{
		Messages: ctxMsgs,
		Options: map[string]interface{}{
			providers.OptTemperature: ag.PresetFloat("temperature", cfg.LLM.Temperature),
			providers.OptMaxTokens:   int(ag.PresetFloat("max_tokens", float64(cfg.LLM.MaxTokens))),
		},
	}

	llmCtx, llmSpan := tracer.Start(ctx, "llm.stream")
	llmSpan.SetAttributes(attribute.String("llm.provider", c.server.provider.Name()))
	_, err := c.server.provider.ChatStream(llmCtx, req, func(chunk providers.StreamChunk) {
		if !chunk.Done {
			sb.OnToken(chunk.Content)
		}
	})
	llmSpan.End()
	if err != nil {
		// The user turn stays cached; the client may retry.
		slog.Error("llm call failed", "chat", frame.ChatUUID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "llm call failed")
		c.sendError(protocol.ErrorFrame{Error: "llm failure: " + err.Error(), ChatUUID: frame.ChatUUID})
		return
	}

	full, messageUUID, contentUUID := sb.Complete()
	c.server.chats.AddMessage(entity.Message{
		ID:           messageUUID,
		ContentID:    contentUUID,
		ChatID:       frame.ChatUUID,
		SenderID:     ag.ID,
		SenderKind:   entity.KindAgent,
		ReceiverID:   frame.SenderUUID,
		ReceiverKind: entity.ParseSenderKind(frame.SenderType),
		Content:      full,
		CreatedAt:    time.Now(),
	}, ag.ID, authID)
}

// historyToMessages validates and converts a chat_history snapshot. All
// items are validated before any is converted, so a bad item leaves the
// session untouched.
func historyToMessages(chatID string, items []protocol.HistoryItem) ([]entity.Message, error) {
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return nil, err
		}
	}

	msgs := make([]entity.Message, 0, len(items))
	for _, it := range items {
		id := it.MessageUUID
		if id == "" {
			id = uuid.NewString()
		}
		msgs = append(msgs, entity.Message{
			ID:           id,
			ContentID:    it.MessageContentUUID,
			ChatID:       chatID,
			SenderID:     it.SenderUUID,
			SenderKind:   entity.ParseSenderKind(it.SenderType),
			ReceiverID:   it.ReceiverUUID,
			ReceiverKind: entity.ParseSenderKind(it.ReceiverType),
			Content:      it.Content,
			CreatedAt:    it.CreatedAt,
		})
	}
	return msgs, nil
}

// heartbeat pings the peer every HeartbeatInterval and tears the connection
// down when a pong does not arrive within pongWait.
func (c *Client) heartbeat() {
	interval := c.server.cfg.HeartbeatInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		if c.busy.Load() {
			continue
		}

		// Drain any stale pong before probing.
		select {
		case <-c.pongCh:
		default:
		}

		deadline := time.Now().Add(pongWait)
		if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			return
		}

		select {
		case <-c.pongCh:
		case <-c.done:
			return
		case <-time.After(pongWait):
			if c.busy.Load() {
				continue
			}
			slog.Warn("heartbeat timeout", "id", c.id)
			c.conn.Close()
			return
		}
	}
}

func (c *Client) sendStream(frame protocol.StreamFrame) error {
	return c.sendJSON(frame)
}

func (c *Client) sendError(frame protocol.ErrorFrame) {
	c.sendJSON(frame)
}

func (c *Client) sendJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(v); err != nil {
		return err
	}
	c.server.registry.UpdateActivity(c.id, 1, 0)
	return nil
}
