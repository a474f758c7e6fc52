package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/fluxbyte/chatgate/internal/agent"
	"github.com/fluxbyte/chatgate/internal/cache"
	"github.com/fluxbyte/chatgate/internal/config"
	"github.com/fluxbyte/chatgate/internal/gateway"
	"github.com/fluxbyte/chatgate/internal/providers"
	"github.com/fluxbyte/chatgate/internal/telemetry"
)

func runServe() {
	// Setup structured logging
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	// .env is optional; real env vars win either way.
	godotenv.Load()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("telemetry setup failed", "error", err)
		os.Exit(1)
	}
	defer shutdownTelemetry(context.Background())

	var provider providers.Provider = providers.NewGroq(cfg.LLM.APIKey, cfg.LLM.Model)
	if cfg.LLM.APIBase != "" {
		provider = providers.NewOpenAIProvider("groq", cfg.LLM.APIKey, cfg.LLM.APIBase, cfg.LLM.Model)
	}

	agentCache := cache.NewAgentCache(cfg.Cache.MaxAgents)
	chatCache := cache.NewChatCache(cache.ChatCacheConfig{
		Capacity:      cfg.Cache.MaxChats,
		MaxMessages:   cfg.Cache.MaxChatMessages,
		MaxTokens:     cfg.Cache.MaxChatTokens,
		ContextWindow: cfg.Cache.MaxContextMessages,
		DesyncSlack:   cfg.Cache.DesyncSlack,
	})
	agents := agent.NewManager(agentCache, cfg.LLM.Temperature, cfg.LLM.MaxTokens)

	server := gateway.NewServer(cfg, agentCache, chatCache, agents, provider)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("graceful shutdown initiated", "signal", sig)
		cancel()
	}()

	slog.Info("chatgate starting",
		"version", Version,
		"model", cfg.LLM.Model,
		"max_agents", cfg.Cache.MaxAgents,
		"max_chats", cfg.Cache.MaxChats,
		"context_window", cfg.Cache.MaxContextMessages,
		"context_strategy", cfg.Cache.ContextStrategy,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx) })
	g.Go(func() error { return server.RunSweeper(gctx) })

	if err := g.Wait(); err != nil {
		slog.Error("gateway error", "error", err)
		os.Exit(1)
	}
}
