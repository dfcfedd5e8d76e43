// Package present adapts render models to chart engines: the JSON
// options/series contract of the browser chart, and PNG images drawn
// server-side.
package present

import (
	"github.com/talgya/scorelog-viewer/internal/scorelog"
	"github.com/talgya/scorelog-viewer/internal/stats"
)

// Chart geometry and texts shared by every render.
const (
	ChartHeight   = 620
	XAxisTitle    = "Turn"
	DefaultYTitle = "Value"
	NoDataText    = "Select a tag to view data"
)

// ChartOptions mirrors the subset of the browser chart's option object
// the viewer sets.
type ChartOptions struct {
	Chart   ChartSection   `json:"chart"`
	Stroke  StrokeSection  `json:"stroke"`
	Markers MarkersSection `json:"markers"`
	XAxis   AxisSection    `json:"xaxis"`
	YAxis   AxisSection    `json:"yaxis"`
	Legend  LegendSection  `json:"legend"`
	Tooltip TooltipSection `json:"tooltip"`
	NoData  TextSection    `json:"noData"`
}

type ChartSection struct {
	Type    string  `json:"type"`
	Height  int     `json:"height"`
	Toolbar Toggle  `json:"toolbar"`
	Zoom    Enabled `json:"zoom"`
	Stacked bool    `json:"stacked"`
}

type Toggle struct {
	Show bool `json:"show"`
}

type Enabled struct {
	Enabled bool `json:"enabled"`
}

type StrokeSection struct {
	Width int `json:"width"`
}

type MarkersSection struct {
	Size int `json:"size"`
}

type AxisSection struct {
	Type  string      `json:"type,omitempty"`
	Title TextSection `json:"title"`
}

type TextSection struct {
	Text string `json:"text"`
}

type LegendSection struct {
	Position string `json:"position"`
}

type TooltipSection struct {
	Shared    bool `json:"shared"`
	Intersect bool `json:"intersect"`
}

// BuildOptions returns the chart options for a tag. An empty tag leaves
// the y axis titled "Value".
func BuildOptions(tag string, stacked bool) ChartOptions {
	yTitle := tag
	if yTitle == "" {
		yTitle = DefaultYTitle
	}
	return ChartOptions{
		Chart: ChartSection{
			Type:    "line",
			Height:  ChartHeight,
			Toolbar: Toggle{Show: true},
			Zoom:    Enabled{Enabled: true},
			Stacked: stacked,
		},
		Stroke:  StrokeSection{Width: 2},
		Markers: MarkersSection{Size: 0},
		XAxis:   AxisSection{Type: "numeric", Title: TextSection{Text: XAxisTitle}},
		YAxis:   AxisSection{Title: TextSection{Text: yTitle}},
		Legend:  LegendSection{Position: "bottom"},
		Tooltip: TooltipSection{Shared: true, Intersect: false},
		NoData:  TextSection{Text: NoDataText},
	}
}

// PlotSeries is one line handed to a chart engine. Names are raw: the id
// prefix is only stripped in the stats table.
type PlotSeries struct {
	Name string           `json:"name"`
	Data []scorelog.Point `json:"data"`
}

// ChartView is the full input for one render.
type ChartView struct {
	Options    ChartOptions  `json:"options"`
	Series     []PlotSeries  `json:"series"`
	ShowLegend bool          `json:"show_legend"`
	ShowStats  bool          `json:"show_stats"`
	Legend     *stats.Legend `json:"legend,omitempty"`
	Stats      *stats.Table  `json:"stats,omitempty"`
}

// Adapt turns a render model into a chart view. stacked is the current
// stacking toggle and is re-applied on every call.
func Adapt(m stats.RenderModel, stacked bool) ChartView {
	series := make([]PlotSeries, 0, len(m.Series))
	for _, s := range m.Series {
		data := s.Data
		if data == nil {
			data = []scorelog.Point{}
		}
		series = append(series, PlotSeries{Name: s.Name, Data: data})
	}
	return ChartView{
		Options:    BuildOptions(m.Tag, stacked),
		Series:     series,
		ShowLegend: m.Legend != nil,
		ShowStats:  m.Stats != nil,
		Legend:     m.Legend,
		Stats:      m.Stats,
	}
}
