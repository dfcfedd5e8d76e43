// Command viewer serves the scorelog viewer over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/talgya/scorelog-viewer/internal/api"
	"github.com/talgya/scorelog-viewer/internal/app"
	"github.com/talgya/scorelog-viewer/internal/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// ── Environment ───────────────────────────────────────────────────
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not read .env", "error", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	caps := cfg.Display.Capabilities
	slog.Info("scorelog viewer",
		"backend", cfg.Sources.Backend,
		"sources", len(cfg.Sources.Files),
		"stacked", caps.Stacked,
		"stats", caps.ShowStats,
		"legend", caps.ShowLegend,
	)

	// ── Stores and loader ─────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if a.DB == nil {
		slog.Warn("DATABASE_URL not set, load log disabled")
	}

	// ── HTTP ──────────────────────────────────────────────────────────
	server := api.NewServer(a)
	server.Start()
	fmt.Printf("Scorelog viewer: http://localhost:%d/\n", cfg.Server.Port)

	<-ctx.Done()
	slog.Info("received signal, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
	slog.Info("viewer stopped")
}
