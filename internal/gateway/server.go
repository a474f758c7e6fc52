// Package gateway is the WebSocket front of chatgate: the HTTP/WS server,
// the per-connection session loop, the connection registry, and the
// streaming flush buffer.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fluxbyte/chatgate/internal/agent"
	"github.com/fluxbyte/chatgate/internal/cache"
	"github.com/fluxbyte/chatgate/internal/config"
	"github.com/fluxbyte/chatgate/internal/providers"
)

// sweepInterval is how often the idle sweeper scans the registry.
const sweepInterval = 60 * time.Second

// Server is the gateway server handling WebSocket connections.
type Server struct {
	cfg        *config.Config
	agentCache *cache.AgentCache
	chats      *cache.ChatCache
	agents     *agent.Manager
	provider   providers.Provider
	registry   *Registry

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates a gateway server.
func NewServer(cfg *config.Config, agentCache *cache.AgentCache, chats *cache.ChatCache, agents *agent.Manager, provider providers.Provider) *Server {
	s := &Server{
		cfg:        cfg,
		agentCache: agentCache,
		chats:      chats,
		agents:     agents,
		provider:   provider,
		registry:   NewRegistry(),
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	return s
}

// Registry exposes the connection registry for the sweeper and stats.
func (s *Server) Registry() *Registry { return s.registry }

// BuildMux creates and caches the HTTP mux with all routes registered.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.mux = mux
	return mux
}

// Start begins listening for WebSocket connections and blocks until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	slog.Info("gateway starting", "addr", addr, "model", s.provider.DefaultModel())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

// RunSweeper evicts idle connections every sweepInterval until ctx is
// cancelled.
func (s *Server) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	timeout := s.cfg.ConnectionTimeout()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.registry.CleanupStale(timeout); n > 0 {
				slog.Info("idle sweep", "evicted", n, "active", s.registry.Len())
			}
		}
	}
}

// handleWebSocket upgrades HTTP to WebSocket and runs the session loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, s)
	defer client.Close()
	client.Run(r.Context())
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","connections":%d}`, s.registry.Len())
}

// StartTestServer creates a listener on :0 (random port) and returns the
// actual address and a start function. Used for integration tests.
func StartTestServer(s *Server, ctx context.Context) (addr string, start func()) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic("listen: " + err.Error())
	}

	s.httpServer = &http.Server{Handler: mux}
	addr = ln.Addr().String()

	start = func() {
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.httpServer.Shutdown(shutdownCtx)
		}()
		s.httpServer.Serve(ln)
	}

	return addr, start
}
