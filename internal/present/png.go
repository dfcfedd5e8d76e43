package present

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"sort"

	chart "github.com/wcharczuk/go-chart/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Default PNG size when the caller does not ask for one.
const (
	DefaultPNGWidth  = 1024
	DefaultPNGHeight = ChartHeight
)

// RenderPNG draws the view as a line chart. Null samples are skipped;
// stacked views draw each series on top of the ones before it. A view
// with nothing to plot renders the no-data text on a blank canvas.
func RenderPNG(w io.Writer, view ChartView, width, height int) error {
	if width <= 0 {
		width = DefaultPNGWidth
	}
	if height <= 0 {
		height = DefaultPNGHeight
	}

	series := buildPNGSeries(view.Series, view.Options.Chart.Stacked)
	if len(series) == 0 {
		return png.Encode(w, noDataImage(width, height, view.Options.NoData.Text))
	}

	minY, maxY := math.MaxFloat64, -math.MaxFloat64
	for _, s := range series {
		for _, y := range s.YValues {
			minY = math.Min(minY, y)
			maxY = math.Max(maxY, y)
		}
	}
	lo, hi := niceAxisBounds(math.Min(minY, 0), maxY)

	ch := chart.Chart{
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 20, Right: 16, Bottom: 28}},
		XAxis:      chart.XAxis{Name: view.Options.XAxis.Title.Text},
		YAxis: chart.YAxis{
			Name:  view.Options.YAxis.Title.Text,
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
	}
	for _, s := range series {
		ch.Series = append(ch.Series, s)
	}
	ch.Elements = []chart.Renderable{chart.LegendThin(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// buildPNGSeries converts plot series to continuous series. A series
// whose samples all sit on one turn is widened to a short flat segment so
// the x range is non-empty. Stacked values that overflow are dropped.
func buildPNGSeries(in []PlotSeries, stacked bool) []chart.ContinuousSeries {
	running := map[float64]float64{}
	var out []chart.ContinuousSeries
	for _, s := range in {
		var xs, ys []float64
		for _, p := range s.Data {
			if !p.Valid {
				continue
			}
			y := p.Y
			if stacked {
				y += running[p.X]
				running[p.X] = y
			}
			if math.IsInf(y, 0) || math.IsNaN(y) {
				continue
			}
			xs = append(xs, p.X)
			ys = append(ys, y)
		}
		if len(xs) == 0 {
			continue
		}
		sortByX(xs, ys)
		if last := len(xs) - 1; xs[0] == xs[last] {
			xs = append(xs, xs[last]+1)
			ys = append(ys, ys[last])
		}
		out = append(out, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: ys,
			Style:   chart.Style{StrokeWidth: 2},
		})
	}
	return out
}

func sortByX(xs, ys []float64) {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })
	sx := make([]float64, len(xs))
	sy := make([]float64, len(ys))
	for i, j := range idx {
		sx[i], sy[i] = xs[j], ys[j]
	}
	copy(xs, sx)
	copy(ys, sy)
}

func niceAxisBounds(min, max float64) (float64, float64) {
	if max <= min {
		max = min + 1
	}
	span := max - min
	if math.IsInf(span, 0) {
		return min, max
	}
	// 5% headroom on top
	b := max + span*0.05
	a := min
	mag := math.Pow(10, math.Floor(math.Log10(span)))
	if !math.IsInf(mag, 0) && mag > 0 {
		a = math.Floor(a/mag) * mag
		b = math.Ceil(b/mag) * mag
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return min, max
	}
	return a, b
}

// noDataImage draws text centered on a white canvas.
func noDataImage(w, h int, text string) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if text == "" {
		return img
	}
	face := basicfont.Face7x13
	dr := &font.Drawer{Dst: img, Src: image.NewUniform(color.RGBA{R: 110, G: 110, B: 110, A: 255}), Face: face}
	tw := dr.MeasureString(text).Ceil()
	dr.Dot = fixed.Point26_6{X: fixed.I((w - tw) / 2), Y: fixed.I(h / 2)}
	dr.DrawString(text)
	return img
}
