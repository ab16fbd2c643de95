// Command helmsman runs the agent runtime: the HTTP API, the task
// runners behind it, and the sandbox fleet they provision.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/haasonsaas/helmsman/internal/config"
	"github.com/haasonsaas/helmsman/internal/llm"
	"github.com/haasonsaas/helmsman/internal/observability"
	"github.com/haasonsaas/helmsman/internal/sandbox"
	"github.com/haasonsaas/helmsman/internal/search"
	"github.com/haasonsaas/helmsman/internal/server"
	"github.com/haasonsaas/helmsman/internal/session"
	"github.com/haasonsaas/helmsman/internal/storage"
	"github.com/haasonsaas/helmsman/internal/stream"
	"github.com/haasonsaas/helmsman/internal/task"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "helmsman:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := observability.SetDefault(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis backs the queues in multi-process deployments; without it
	// everything runs on the in-process queue.
	var factory stream.Factory = stream.NewMemoryFactory()
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		defer client.Close()
		factory = stream.NewRedisFactory(client)
		logger.Info("using redis streams", "addr", cfg.Redis.Addr)
	}

	var repo session.Repository = session.NewMemoryRepository()
	if cfg.Postgres.DSN != "" {
		pg, err := session.NewPostgresRepository(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pg.Close()
		repo = pg
		logger.Info("using postgres session store")
	}

	files, err := storage.NewLocalStorage(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	sandboxes := sandbox.NewManager(cfg.Sandbox, logger)
	tasks := task.NewManager(factory, logger)

	srv := server.New(server.Params{
		Repo:      repo,
		Files:     files,
		Sandboxes: sandboxes,
		Tasks:     tasks,
		LLM:       llm.NewOpenAIClient(cfg.LLM),
		Engine:    search.NewBingEngine(cfg.Agent.MaxSearchResults),
		Agent:     cfg.Agent,
		MCP:       cfg.MCP,
		A2A:       cfg.A2A,
		Logger:    logger,
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	tasks.DestroyAll(shutdownCtx)
	return nil
}
