package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	rvhttp "github.com/reverbhq/reverb/internal/adapter/http"
	"github.com/reverbhq/reverb/internal/adapter/mcp"
	rvnats "github.com/reverbhq/reverb/internal/adapter/nats"
	rvotel "github.com/reverbhq/reverb/internal/adapter/otel"
	"github.com/reverbhq/reverb/internal/adapter/postgres"
	"github.com/reverbhq/reverb/internal/adapter/ristretto"
	"github.com/reverbhq/reverb/internal/adapter/ws"
	"github.com/reverbhq/reverb/internal/config"
	"github.com/reverbhq/reverb/internal/logger"
	"github.com/reverbhq/reverb/internal/port/broadcast"
	"github.com/reverbhq/reverb/internal/port/messagequeue"
	"github.com/reverbhq/reverb/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	ctx := context.Background()

	// --- Observability ---
	shutdownOTel, err := rvotel.Setup(ctx, cfg.OTel.Endpoint, cfg.OTel.ServiceName)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			slog.Error("otel shutdown failed", "error", err)
		}
	}()

	metrics, err := rvotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS is optional; without it events are still recorded, just not
	// fanned out to the stream.
	var queue messagequeue.Queue
	if cfg.NATS.URL != "" {
		natsQueue, err := rvnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = natsQueue.Close() }()
		queue = natsQueue
	} else {
		slog.Info("nats disabled, event fan-out off")
	}

	// Aggregate cache
	cache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	// --- Services ---
	hub := ws.NewHub()
	store := postgres.NewEventStore(pool)

	var hubPort broadcast.Broadcaster = hub
	eventSvc := service.NewEventService(store, queue, hubPort, cache, metrics)
	replaySvc := service.NewReplayService(eventSvc, nil, metrics)

	// --- MCP ---
	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer(
			mcp.ServerConfig{Addr: cfg.MCP.Addr, Name: "reverb", Version: "0.1.0"},
			mcp.ServerDeps{Replayer: replaySvc, Stats: eventSvc},
		)
		if err := mcpServer.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mcpServer.Stop(stopCtx); err != nil {
				slog.Error("mcp shutdown failed", "error", err)
			}
		}()
	}

	// --- HTTP ---
	handlers := rvhttp.NewHandlers(eventSvc, replaySvc)

	r := chi.NewRouter()

	r.Use(rvhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(rvhttp.RequestID)
	r.Use(rvhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(rvotel.HTTPMiddleware("reverb"))

	r.Get("/health", healthHandler(cfg, hub))

	// WebSocket endpoint for live event notifications
	r.Get("/ws", hub.HandleWS)

	rvhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// healthHandler returns an http.HandlerFunc that reports service health.
func healthHandler(cfg *config.Config, hub *ws.Hub) http.HandlerFunc {
	type healthStatus struct {
		Status        string `json:"status"`
		NATS          bool   `json:"nats"`
		MCP           bool   `json:"mcp"`
		WSConnections int    `json:"wsConnections"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		status := healthStatus{
			Status:        "ok",
			NATS:          cfg.NATS.URL != "",
			MCP:           cfg.MCP.Enabled,
			WSConnections: hub.ConnectionCount(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
