// Package stats turns a selected tag block into what the viewer shows:
// the plot series, the per-player summary table and, for the government
// tag, the fixed code legend.
package stats

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"

	"github.com/talgya/scorelog-viewer/internal/config"
	"github.com/talgya/scorelog-viewer/internal/scorelog"
)

// GovernmentTag is the tag name whose values are government codes.
const GovernmentTag = "gov"

// CumulativeAdvisory replaces the total column for tags where summing
// values over turns means nothing.
const CumulativeAdvisory = "Cumulative data not available for this tag type."

// Row summarizes one player series. Max is -Inf and MaxTurn nil when the
// series has no numeric samples. Total is +Inf or -Inf when the sum
// overflows float64.
type Row struct {
	Name    string
	Max     float64
	MaxTurn *float64
	Total   float64
}

// HasMax reports whether the series had any numeric sample.
func (r Row) HasMax() bool {
	return !math.IsInf(r.Max, -1)
}

// Table is the stats block. Total values are only shown when ShowTotal
// is set; otherwise Advisory explains why.
type Table struct {
	Rows      []Row
	ShowTotal bool
	Advisory  string
}

type rowJSON struct {
	Name    string   `json:"name"`
	Max     *float64 `json:"max"`
	MaxTurn *float64 `json:"max_turn"`
	Total   *float64 `json:"total,omitempty"`
}

// MarshalJSON omits the total field entirely when the column is hidden.
// Values JSON cannot carry, a missing max or a total that overflowed,
// are null.
func (t Table) MarshalJSON() ([]byte, error) {
	rows := make([]rowJSON, 0, len(t.Rows))
	for _, r := range t.Rows {
		rj := rowJSON{Name: r.Name, Max: scorelog.Finite(r.Max)}
		if r.MaxTurn != nil {
			rj.MaxTurn = scorelog.Finite(*r.MaxTurn)
		}
		if t.ShowTotal {
			rj.Total = scorelog.Finite(r.Total)
		}
		rows = append(rows, rj)
	}
	return json.Marshal(struct {
		Rows      []rowJSON `json:"rows"`
		ShowTotal bool      `json:"show_total"`
		Advisory  string    `json:"advisory,omitempty"`
	}{rows, t.ShowTotal, t.Advisory})
}

// RenderModel is everything a presentation adapter needs for one tag.
// A nil Legend or Stats means the block is hidden.
type RenderModel struct {
	TagID  string                  `json:"tag_id"`
	Tag    string                  `json:"tag"`
	Series []scorelog.PlayerSeries `json:"series"`
	Legend *Legend                 `json:"legend"`
	Stats  *Table                  `json:"stats"`
}

// IsEmpty reports whether this is the empty state.
func (m RenderModel) IsEmpty() bool {
	return m.TagID == "" && len(m.Series) == 0 && m.Legend == nil && m.Stats == nil
}

// EmptyModel is shown when no tag is selected or a load failed.
func EmptyModel() RenderModel {
	return RenderModel{Series: []scorelog.PlayerSeries{}}
}

// Engine builds render models under a fixed configuration.
type Engine struct {
	eligible map[string]struct{}
	legend   Legend
	caps     config.Capabilities
}

// NewEngine copies what it needs out of cfg.
func NewEngine(cfg config.Config) *Engine {
	e := &Engine{
		eligible: make(map[string]struct{}, len(cfg.CumulativeTags)),
		legend:   newGovernmentLegend(cfg.GovernmentCodes),
		caps:     cfg.Display.Capabilities,
	}
	for _, tag := range cfg.CumulativeTags {
		e.eligible[tag] = struct{}{}
	}
	return e
}

// Capabilities returns the display capabilities the engine honors.
func (e *Engine) Capabilities() config.Capabilities {
	return e.caps
}

// Eligible reports whether totals are meaningful for the tag name.
func (e *Engine) Eligible(tag string) bool {
	_, ok := e.eligible[tag]
	return ok
}

// GovernmentLegend returns a copy of the static legend.
func (e *Engine) GovernmentLegend() Legend {
	return e.legend.clone()
}

// Build computes the render model for the selected block. A nil block is
// the empty state.
func (e *Engine) Build(tagID string, block *scorelog.TagBlock) RenderModel {
	if block == nil {
		return EmptyModel()
	}

	m := RenderModel{
		TagID:  tagID,
		Tag:    block.Tag,
		Series: block.Series,
	}
	if m.Series == nil {
		m.Series = []scorelog.PlayerSeries{}
	}

	if e.caps.ShowLegend && block.Tag == GovernmentTag {
		legend := e.legend.clone()
		m.Legend = &legend
	}

	if e.caps.ShowStats && block.HasSeries() {
		table := Table{
			Rows:      ComputeRows(block.Series),
			ShowTotal: e.Eligible(block.Tag),
		}
		if !table.ShowTotal {
			table.Advisory = CumulativeAdvisory
		}
		m.Stats = &table
	}
	return m
}

// ComputeRows summarizes every series that has data, ordered by max
// descending. Series with equal max keep their input order.
func ComputeRows(series []scorelog.PlayerSeries) []Row {
	rows := make([]Row, 0, len(series))
	for _, s := range series {
		if len(s.Data) == 0 {
			continue
		}
		rows = append(rows, Summarize(s))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Max > rows[j].Max
	})
	return rows
}

// Summarize computes max, the first turn reaching it, and the sum of the
// numeric samples of one series.
func Summarize(s scorelog.PlayerSeries) Row {
	row := Row{Name: CleanName(s.Name), Max: math.Inf(-1)}
	for _, p := range s.Data {
		if !p.Valid {
			continue
		}
		row.Total += p.Y
		if p.Y > row.Max {
			row.Max = p.Y
			turn := p.X
			row.MaxTurn = &turn
		}
	}
	return row
}

// idPrefix matches digits then whitespace, Unicode spaces included.
var idPrefix = regexp.MustCompile(`^\d+[\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]+`)

// CleanName strips a leading player id, "3 Romans" -> "Romans".
func CleanName(name string) string {
	return idPrefix.ReplaceAllString(name, "")
}
