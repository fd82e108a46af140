package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prepworks/mcat-scheduler/internal/catalog"
	"github.com/prepworks/mcat-scheduler/internal/platform/cache"
	"github.com/prepworks/mcat-scheduler/internal/platform/config"
	"github.com/prepworks/mcat-scheduler/internal/platform/database"
	"github.com/prepworks/mcat-scheduler/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	probes := make(map[string]server.Pinger)

	var store catalog.Store
	switch cfg.Catalog.Backend {
	case "postgres":
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		probes["database"] = db

		pg, err := catalog.NewPostgresStore(db.Pool)
		if err != nil {
			slog.Error("failed to create catalog store", "error", err)
			os.Exit(1)
		}
		if err := pg.Migrate(ctx); err != nil {
			slog.Error("failed to migrate catalog schema", "error", err)
			os.Exit(1)
		}
		store = pg

	case "memory":
		mem := catalog.NewMemoryStore()
		if err := catalog.LoadFixtures(ctx, mem, cfg.Catalog.FixturesPath); err != nil {
			slog.Error("failed to load catalog fixtures", "error", err)
			os.Exit(1)
		}
		store = mem
	}

	var planCache *cache.Cache
	if cfg.Cache.Enabled {
		planCache, err = cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			slog.Error("failed to connect to cache", "error", err)
			os.Exit(1)
		}
		defer planCache.Close()
		probes["cache"] = planCache
	}

	srv := server.New(store, planCache, time.Duration(cfg.Cache.PlanTTLMin)*time.Minute, probes)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", httpSrv.Addr, "backend", cfg.Catalog.Backend)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
