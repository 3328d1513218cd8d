package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"chatforge/internal/config"
	"chatforge/internal/persistence"
	"chatforge/internal/providers"
	"chatforge/internal/server"
	"chatforge/pkg/logger"
)

func main() {
	// .env is optional; environment variables win over the YAML config.
	_ = godotenv.Load()

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		logger.Fatalf("Fatal parsing config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Fatalf("Failed to create data directory: %v", err)
	}

	creds, err := config.LoadCredentials(filepath.Join(cfg.DataDir, "credentials.json"))
	if err != nil {
		logger.Fatalf("Failed to load credential store: %v", err)
	}
	creds.Seed(cfg.Providers)

	store, err := persistence.NewStore(cfg.DataDir)
	if err != nil {
		logger.Fatalf("Failed to open chat store: %v", err)
	}
	defer store.Close()

	registry := providers.NewRegistry(cfg.Chat.RequestTimeout)
	srv := server.NewServer(registry, creds, store, cfg.Chat.SystemPrompt)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Printf("[Server] Listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Printf("[Server] Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatalf("Server stopped: %v", err)
	}
}
