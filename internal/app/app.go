// Package app wires configuration into the shared components both
// binaries use: the archive, the cache, the loader and the stats engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/talgya/scorelog-viewer/internal/cache"
	"github.com/talgya/scorelog-viewer/internal/config"
	"github.com/talgya/scorelog-viewer/internal/loader"
	"github.com/talgya/scorelog-viewer/internal/persistence"
	"github.com/talgya/scorelog-viewer/internal/session"
	"github.com/talgya/scorelog-viewer/internal/stats"
)

// ErrNoArchive is returned when the archive backend is selected but no
// database is configured.
var ErrNoArchive = errors.New("archive backend requires a database")

// App holds process-wide components. DB and Redis are nil when not
// configured.
type App struct {
	Config config.Config
	Engine *stats.Engine
	Loader *loader.Loader
	DB     *persistence.DB
	Redis  *redis.Client
}

// Open connects to the configured stores and builds the loader chain.
func Open(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg, Engine: stats.NewEngine(cfg)}

	if cfg.Database.DSN != "" {
		db, err := persistence.Open(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		a.DB = db
		slog.Info("archive opened")
	}

	if cfg.Redis.URL != "" {
		client, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = client
		slog.Info("scorelog cache enabled", "ttl", cfg.Redis.TTL)
	}

	fetcher, err := a.fetcher()
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.Redis != nil {
		fetcher = cache.NewFetcher(fetcher, a.Redis, cfg.Redis.TTL)
	}

	var recorder loader.Recorder
	if a.DB != nil {
		recorder = a.DB
	}
	a.Loader = loader.New(fetcher, recorder)

	slog.Info("scorelog sources",
		"backend", cfg.Sources.Backend,
		"candidates", len(cfg.Sources.Files),
	)
	return a, nil
}

func (a *App) fetcher() (loader.Fetcher, error) {
	src := a.Config.Sources
	switch src.Backend {
	case config.BackendDir, "":
		return loader.DirFetcher{Root: src.Dir}, nil
	case config.BackendHTTP:
		return loader.NewHTTPFetcher(src.BaseURL, src.Timeout), nil
	case config.BackendArchive:
		if a.DB == nil {
			return nil, ErrNoArchive
		}
		return a.DB, nil
	default:
		return nil, fmt.Errorf("unknown source backend %q", src.Backend)
	}
}

// NewSession creates a controller for one viewer.
func (a *App) NewSession() *session.Controller {
	return session.New(a.Loader, a.Engine, a.Config)
}

// Close releases the archive and cache connections.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
