package gateway

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ConnInfo is a snapshot of one connection's metadata.
type ConnInfo struct {
	ConnectionID string
	AuthID       string
	ConnectedAt  time.Time
	LastActivity time.Time
	MsgsSent     int64
	MsgsReceived int64
}

// PoolStats is the connection-pool snapshot reported on the stats command.
type PoolStats struct {
	ActiveConnections     int     `json:"active_connections"`
	IdentifiedConnections int     `json:"identified_connections"`
	TotalMsgsSent         int64   `json:"total_msgs_sent"`
	TotalMsgsReceived     int64   `json:"total_msgs_received"`
	AvgConnectionSecs     float64 `json:"avg_connection_secs"`
}

type connMeta struct {
	authID       string
	connectedAt  time.Time
	lastActivity time.Time
	msgsSent     int64
	msgsReceived int64
}

// Registry tracks live connections and their activity. All access is
// serialized through one mutex; the maps are small and contention is
// dominated by LLM latency.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*websocket.Conn
	meta  map[string]*connMeta
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*websocket.Conn),
		meta:  make(map[string]*connMeta),
	}
}

// Register adds a connection.
func (r *Registry) Register(id string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.conns[id] = conn
	r.meta[id] = &connMeta{connectedAt: now, lastActivity: now}
}

// Unregister removes a connection. Idempotent.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
	delete(r.meta, id)
}

// Identify binds an auth id to the connection. Returns false for unknown
// connections.
func (r *Registry) Identify(id, authID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meta[id]
	if !ok {
		return false
	}
	m.authID = authID
	m.lastActivity = time.Now()
	return true
}

// AuthID returns the bound identity, or "" if not identified.
func (r *Registry) AuthID(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.meta[id]; ok {
		return m.authID
	}
	return ""
}

// UpdateActivity bumps last-activity and the send/receive counters.
func (r *Registry) UpdateActivity(id string, sent, received int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meta[id]
	if !ok {
		return
	}
	m.lastActivity = time.Now()
	m.msgsSent += sent
	m.msgsReceived += received
}

// Get returns a snapshot of one connection's metadata.
func (r *Registry) Get(id string) (ConnInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meta[id]
	if !ok {
		return ConnInfo{}, false
	}
	return ConnInfo{
		ConnectionID: id,
		AuthID:       m.authID,
		ConnectedAt:  m.connectedAt,
		LastActivity: m.lastActivity,
		MsgsSent:     m.msgsSent,
		MsgsReceived: m.msgsReceived,
	}, true
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Stats returns pool-wide counters.
func (r *Registry) Stats() PoolStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := PoolStats{ActiveConnections: len(r.meta)}
	now := time.Now()
	var totalSecs float64
	for _, m := range r.meta {
		if m.authID != "" {
			stats.IdentifiedConnections++
		}
		stats.TotalMsgsSent += m.msgsSent
		stats.TotalMsgsReceived += m.msgsReceived
		totalSecs += now.Sub(m.connectedAt).Seconds()
	}
	if len(r.meta) > 0 {
		stats.AvgConnectionSecs = totalSecs / float64(len(r.meta))
	}
	return stats
}

// CleanupStale closes and removes connections idle longer than timeout.
// Returns the number evicted. The read loop of an evicted connection
// observes the close and unwinds.
func (r *Registry) CleanupStale(timeout time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-timeout)
	evicted := 0
	for id, m := range r.meta {
		if m.lastActivity.After(cutoff) {
			continue
		}
		if conn := r.conns[id]; conn != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "idle timeout")
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			conn.Close()
		}
		delete(r.conns, id)
		delete(r.meta, id)
		evicted++
		slog.Info("connection evicted", "id", id, "reason", "idle")
	}
	return evicted
}
