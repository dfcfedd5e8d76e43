package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/talgya/scorelog-viewer/internal/scorelog"
	"github.com/talgya/scorelog-viewer/internal/stats"
)

const (
	formatAuto  = "auto"
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	advisoryStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("3"))
)

// resolveFormat turns "auto" into table for terminals and json otherwise.
func resolveFormat(format string, w io.Writer) (string, error) {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return format, nil
	case formatAuto, "":
		if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
			return formatTable, nil
		}
		return formatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}

// writeData writes v as json or yaml.
func writeData(w io.Writer, format string, v any) error {
	if format == formatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		BorderHeader(true).
		BorderRow(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		})
	return t.Render()
}

// statsTable renders the stats block. The total column is only present
// when the table shows totals.
func statsTable(t *stats.Table) string {
	headers := []string{"Player", "Max", "Max turn"}
	if t.ShowTotal {
		headers = append(headers, "Total")
	}
	rows := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		turn := "-"
		if r.MaxTurn != nil {
			turn = humanize.Commaf(*r.MaxTurn)
		}
		row := []string{r.Name, formatNumber(r.Max), turn}
		if t.ShowTotal {
			row = append(row, formatNumber(r.Total))
		}
		rows = append(rows, row)
	}

	out := renderTable(headers, rows)
	if t.Advisory != "" {
		out += "\n" + advisoryStyle.Render(t.Advisory)
	}
	return out
}

// formatNumber renders v with thousands separators, or "-" when v is
// missing (-Inf) or overflowed.
func formatNumber(v float64) string {
	if scorelog.Finite(v) == nil {
		return "-"
	}
	return humanize.CommafWithDigits(v, 2)
}

func legendTable(l *stats.Legend) string {
	rows := make([][]string, len(l.Entries))
	for i, e := range l.Entries {
		rows[i] = []string{e.Code, e.Name}
	}
	return headerStyle.Render(l.Title) + "\n" +
		renderTable([]string{"Code", "Government"}, rows) + "\n" +
		l.Note + " " + l.Link
}

// statsData is the json/yaml shape of the stats command.
type statsData struct {
	Source   string        `json:"source" yaml:"source"`
	TagID    string        `json:"tag_id" yaml:"tag_id"`
	Tag      string        `json:"tag" yaml:"tag"`
	Rows     []statsRow    `json:"rows,omitempty" yaml:"rows,omitempty"`
	Advisory string        `json:"advisory,omitempty" yaml:"advisory,omitempty"`
	Legend   *stats.Legend `json:"legend,omitempty" yaml:"legend,omitempty"`
}

type statsRow struct {
	Name    string   `json:"name" yaml:"name"`
	Max     *float64 `json:"max" yaml:"max"`
	MaxTurn *float64 `json:"max_turn" yaml:"max_turn"`
	Total   *float64 `json:"total,omitempty" yaml:"total,omitempty"`
}

func toStatsRows(t *stats.Table) []statsRow {
	out := make([]statsRow, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := statsRow{Name: r.Name, MaxTurn: r.MaxTurn, Max: scorelog.Finite(r.Max)}
		if t.ShowTotal {
			row.Total = scorelog.Finite(r.Total)
		}
		out = append(out, row)
	}
	return out
}
