package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/scorelog-viewer/internal/app"
	"github.com/talgya/scorelog-viewer/internal/demo"
	"github.com/talgya/scorelog-viewer/internal/present"
	"github.com/talgya/scorelog-viewer/internal/selection"
	"github.com/talgya/scorelog-viewer/internal/session"
)

// openView opens a session on file (or the first candidate) and, when
// tag is set, selects it. Unlike the page's file hint, an explicit file
// must be one of the configured sources.
func openView(ctx context.Context, a *app.App, file, tag string, stacked bool) (session.Update, error) {
	if sources := selection.ListSources(a.Config); file != "" && !slices.Contains(sources, file) {
		return session.Update{}, fmt.Errorf("%w %q (configured: %s)",
			session.ErrUnknownSource, file, strings.Join(sources, ", "))
	}
	c := a.NewSession()
	c.SetStacked(stacked)
	u, err := c.Open(ctx, file)
	if err != nil {
		return u, err
	}
	if tag != "" {
		return c.SelectTag(tag)
	}
	return u, nil
}

// ── tags ────────────────────────────────────────────────────────────────

func newTagsCmd(root *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List the tags of a scorelog in display order",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := openView(cmd.Context(), a, file, "", false)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			format, err := resolveFormat(root.format, w)
			if err != nil {
				return err
			}
			if format != formatTable {
				return writeData(w, format, u.Tags)
			}

			rows := make([][]string, len(u.Tags))
			for i, t := range u.Tags {
				rows[i] = []string{t.ID, t.Tag, t.Label}
			}
			fmt.Fprintln(w, renderTable([]string{"ID", "Tag", "Label"}, rows))
			fmt.Fprintf(w, "%s tags in %s\n", humanize.Comma(int64(len(u.Tags))), u.Source)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "source id (default: first configured source)")
	return cmd
}

// ── stats ───────────────────────────────────────────────────────────────

func newStatsCmd(root *rootOptions) *cobra.Command {
	var file, tag string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print per-player max, turn of max and total for a tag",
		Long: `Print the stats table for one tag of a scorelog.

Totals are only shown for cumulative tags (pollution, production, gold
and mfg by default). The gov tag also prints the government code legend.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := openView(cmd.Context(), a, file, tag, false)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			format, err := resolveFormat(root.format, w)
			if err != nil {
				return err
			}

			m := u.Model
			if format != formatTable {
				data := statsData{Source: u.Source, TagID: m.TagID, Tag: m.Tag, Legend: m.Legend}
				if m.Stats != nil {
					data.Rows = toStatsRows(m.Stats)
					data.Advisory = m.Stats.Advisory
				}
				return writeData(w, format, data)
			}

			if m.IsEmpty() {
				fmt.Fprintln(w, present.NoDataText)
				return nil
			}
			fmt.Fprintf(w, "%s / %s\n", u.Source, m.Tag)
			if m.Stats != nil {
				fmt.Fprintln(w, statsTable(m.Stats))
			}
			if m.Legend != nil {
				fmt.Fprintln(w, legendTable(m.Legend))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "source id (default: first configured source)")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "tag id (default: first tag in display order)")
	return cmd
}

// ── render ──────────────────────────────────────────────────────────────

func newRenderCmd(root *rootOptions) *cobra.Command {
	var (
		file, tag, output string
		stacked           bool
		width, height     int
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a tag's chart to PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := openView(cmd.Context(), a, file, tag, stacked)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := present.RenderPNG(&buf, u.View, width, height); err != nil {
				return err
			}
			if output == "-" {
				_, err := io.Copy(cmd.OutOrStdout(), &buf)
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%s)\n", output, humanize.Bytes(uint64(buf.Len())))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "source id (default: first configured source)")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "tag id (default: first tag in display order)")
	cmd.Flags().StringVarP(&output, "output", "o", "chart.png", "output file, - for stdout")
	cmd.Flags().BoolVar(&stacked, "stacked", false, "stack series")
	cmd.Flags().IntVar(&width, "width", present.DefaultPNGWidth, "image width in pixels")
	cmd.Flags().IntVar(&height, "height", present.DefaultPNGHeight, "image height in pixels")
	return cmd
}

// ── import ──────────────────────────────────────────────────────────────

func newImportCmd(root *rootOptions) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Store scorelog files in the archive",
		Long: `Store scorelog files in the SQL archive (DATABASE_URL) so the archive
backend can serve them. Each file is stored under its path as given, or
under --id when importing a single file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if id != "" && len(args) > 1 {
				return errors.New("--id only applies to a single file")
			}
			a, err := root.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if a.DB == nil {
				return errors.New("no archive configured (set DATABASE_URL)")
			}

			for _, path := range args {
				body, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				sourceID := filepath.ToSlash(path)
				if id != "" {
					sourceID = id
				}
				info, err := a.DB.ImportScorelog(cmd.Context(), sourceID, body)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s: %d tags, %s\n",
					info.ID, info.TagCount, humanize.Bytes(uint64(len(body))))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "source id to store a single file under")
	return cmd
}

// ── demo ────────────────────────────────────────────────────────────────

func newDemoCmd(root *rootOptions) *cobra.Command {
	var (
		output   string
		importAs string
		seed     int64
		players  int
		turns    int
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Generate a synthetic scorelog",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := demo.DefaultOptions(seed)
			opts.Players = players
			opts.Turns = turns
			p := demo.Generate(opts)

			body, err := p.MarshalJSON()
			if err != nil {
				return err
			}

			if importAs != "" {
				a, err := root.openApp(cmd.Context())
				if err != nil {
					return err
				}
				defer a.Close()
				if a.DB == nil {
					return errors.New("no archive configured (set DATABASE_URL)")
				}
				if _, err := a.DB.ImportScorelog(cmd.Context(), importAs, body); err != nil {
					return err
				}
			}

			if output == "-" {
				_, err := cmd.OutOrStdout().Write(append(body, '\n'))
				return err
			}
			if dir := filepath.Dir(output); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			if err := os.WriteFile(output, body, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s: %d tags, %d players, %d turns\n",
				output, p.Len(), opts.Players, opts.Turns)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	cmd.Flags().StringVar(&importAs, "import", "", "also store in the archive under this source id")
	cmd.Flags().Int64Var(&seed, "seed", 1, "noise seed")
	cmd.Flags().IntVar(&players, "players", 5, "number of players")
	cmd.Flags().IntVar(&turns, "turns", 120, "number of turns")
	return cmd
}

// ── loads ───────────────────────────────────────────────────────────────

func newLoadsCmd(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "loads",
		Short: "Show recent load attempts from the archive's load log",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if a.DB == nil {
				return errors.New("no archive configured (set DATABASE_URL)")
			}

			loads, err := a.DB.RecentLoads(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			format, err := resolveFormat(root.format, w)
			if err != nil {
				return err
			}
			if format != formatTable {
				return writeData(w, format, loads)
			}

			rows := make([][]string, len(loads))
			for i, l := range loads {
				outcome := "ok"
				switch {
				case !l.OK:
					outcome = l.Message
				case l.Unparseable:
					outcome = "unparseable"
				}
				rows[i] = []string{
					humanize.Time(l.LoadedAt),
					l.SourceID,
					outcome,
					humanize.Comma(int64(l.TagCount)),
					(time.Duration(l.DurationMS) * time.Millisecond).String(),
				}
			}
			fmt.Fprintln(w, renderTable([]string{"When", "Source", "Outcome", "Tags", "Took"}, rows))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	return cmd
}
