// Command scorelog inspects scorelogs from the terminal: list tags, print
// per-player stats, render charts to PNG and manage the archive.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/talgya/scorelog-viewer/internal/app"
	"github.com/talgya/scorelog-viewer/internal/config"
)

func main() {
	// Logs go to stderr so stdout stays clean for json/yaml output.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not read .env", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	format     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "scorelog",
		Short: "Inspect game scorelogs",
		Long: `Inspect turn-indexed game scorelogs from the terminal.

Sources, backends and display capabilities come from scorelog.yaml and
the SCORELOG_* environment variables, the same as the viewer server.

Examples:
  scorelog tags --file json/demo1.json
  scorelog stats --file json/demo1.json --tag 1
  scorelog render --file json/demo1.json --tag 1 -o gold.png
  scorelog demo --seed 7 -o json/demo1.json
  scorelog import json/*.json
  scorelog loads --limit 20`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: $SCORELOG_CONFIG or scorelog.yaml)")
	root.PersistentFlags().StringVar(&opts.format, "format", formatAuto, "output format: auto, table, json or yaml")

	root.AddCommand(
		newTagsCmd(opts),
		newStatsCmd(opts),
		newRenderCmd(opts),
		newImportCmd(opts),
		newDemoCmd(opts),
		newLoadsCmd(opts),
	)
	return root
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	return config.Load(o.configPath)
}

func (o *rootOptions) openApp(ctx context.Context) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg)
}
