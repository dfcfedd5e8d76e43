package stats

import (
	"encoding/json"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/talgya/scorelog-viewer/internal/config"
	"github.com/talgya/scorelog-viewer/internal/scorelog"
)

func newEngine() *Engine {
	return NewEngine(config.Default())
}

func TestCleanName(t *testing.T) {
	tests := map[string]string{
		"3 Romans":      "Romans",
		"Barbarians":    "Barbarians",
		"007 Agents":    "Agents",
		"12\tMongols":   "Mongols",
		"3\u00a0Romans": "Romans",
		"4\vHuns":       "Huns",
		"5\u3000Han":    "Han",
		"6\ufeffZulus":  "Zulus",
		"7\u2028Incas":  "Incas",
		"3Romans":       "3Romans",
		"Romans 3":      "Romans 3",
		"":              "",
	}
	for in, want := range tests {
		if got := CleanName(in); got != want {
			t.Errorf("CleanName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuild_OverflowingTotalEncodes(t *testing.T) {
	doc := `{"seriesByTag":{"1":{"tag":"gold","series":[
		{"name":"1 Romans","data":[{"x":1,"y":1e308},{"x":2,"y":1e308}]},
		{"name":"2 Greeks","data":[{"x":1,"y":1e400},{"x":2,"y":5}]}]}}}`
	p, err := scorelog.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	block, _ := p.Block("1")
	m := newEngine().Build("1", block)

	rows := m.Stats.Rows
	if !math.IsInf(rows[0].Total, 1) {
		t.Fatalf("expected overflowed total for Romans, got %+v", rows[0])
	}
	if rows[1].Max != 5 || *rows[1].MaxTurn != 2 || rows[1].Total != 5 {
		t.Errorf("1e400 should be ignored for Greeks, got %+v", rows[1])
	}

	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out struct {
		Stats struct {
			Rows []struct {
				Name  string   `json:"name"`
				Max   *float64 `json:"max"`
				Total *float64 `json:"total"`
			} `json:"rows"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if r := out.Stats.Rows[0]; r.Max == nil || *r.Max != 1e308 || r.Total != nil {
		t.Errorf("expected max 1e308 and no total for Romans, got %s", raw)
	}
}

func TestBuild_EndToEndGold(t *testing.T) {
	doc := `{"seriesByTag":{"1":{"tag":"gold","series":[{"name":"1 Romans","data":[{"x":1,"y":10},{"x":2,"y":5}]},{"name":"2 Greeks","data":[{"x":1,"y":3},{"x":2,"y":20}]}]}}}`
	p, err := scorelog.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	block, _ := p.Block("1")

	m := newEngine().Build("1", block)
	if m.Stats == nil {
		t.Fatal("expected stats block")
	}
	if !m.Stats.ShowTotal || m.Stats.Advisory != "" {
		t.Errorf("gold should show totals without advisory, got %+v", m.Stats)
	}

	want := []struct {
		name    string
		max     float64
		maxTurn float64
		total   float64
	}{
		{"Greeks", 20, 2, 23},
		{"Romans", 10, 1, 15},
	}
	if len(m.Stats.Rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(m.Stats.Rows))
	}
	for i, w := range want {
		r := m.Stats.Rows[i]
		if r.Name != w.name || r.Max != w.max || r.MaxTurn == nil || *r.MaxTurn != w.maxTurn || r.Total != w.total {
			t.Errorf("row %d: got %+v (turn %v), want %+v", i, r, r.MaxTurn, w)
		}
	}

	// Plot series keep raw names.
	if m.Series[0].Name != "1 Romans" {
		t.Errorf("plot series should keep raw name, got %q", m.Series[0].Name)
	}
	if m.Legend != nil {
		t.Error("legend must be hidden for gold")
	}
}

func TestBuild_ScoreHidesTotal(t *testing.T) {
	block := &scorelog.TagBlock{Tag: "score", Series: []scorelog.PlayerSeries{
		{Name: "1 A", Data: []scorelog.Point{scorelog.Num(1, 4)}},
	}}
	m := newEngine().Build("5", block)
	if m.Stats == nil {
		t.Fatal("expected stats block")
	}
	if m.Stats.ShowTotal {
		t.Error("score is not cumulative-eligible")
	}
	if m.Stats.Advisory != CumulativeAdvisory {
		t.Errorf("expected advisory, got %q", m.Stats.Advisory)
	}

	raw, err := json.Marshal(m.Stats)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), `"total"`) {
		t.Errorf("total column must be omitted, got %s", raw)
	}
}

func TestBuild_GovernmentLegend(t *testing.T) {
	e := newEngine()
	gov := e.Build("20", &scorelog.TagBlock{Tag: "gov", Series: []scorelog.PlayerSeries{}})
	if gov.Legend == nil {
		t.Fatal("expected legend for gov")
	}
	if len(gov.Legend.Entries) != 21 {
		t.Fatalf("expected 21 legend entries, got %d", len(gov.Legend.Entries))
	}
	for i := 0; i < 20; i++ {
		if gov.Legend.Entries[i].Code != itoa(i) {
			t.Errorf("entry %d: expected code %d, got %s", i, i, gov.Legend.Entries[i].Code)
		}
	}
	if gov.Legend.Entries[20].Code != "default" {
		t.Errorf("expected default entry last, got %+v", gov.Legend.Entries[20])
	}
	if name, ok := gov.Legend.Name("3"); !ok || name != "Democracy" {
		t.Errorf("expected code 3 = Democracy, got %q", name)
	}

	for _, tag := range []string{"Gov", "government", "gold", ""} {
		if m := e.Build("x", &scorelog.TagBlock{Tag: tag}); m.Legend != nil {
			t.Errorf("tag %q must not show legend", tag)
		}
	}
}

func TestBuild_LegendIndependentOfEligibility(t *testing.T) {
	cfg := config.Default()
	cfg.CumulativeTags = append(cfg.CumulativeTags, "gov")
	m := NewEngine(cfg).Build("1", &scorelog.TagBlock{Tag: "gov", Series: []scorelog.PlayerSeries{}})
	if m.Legend == nil || !m.Stats.ShowTotal {
		t.Errorf("expected legend and totals together, got legend=%v stats=%+v", m.Legend, m.Stats)
	}
}

func TestBuild_LegendIsACopy(t *testing.T) {
	e := newEngine()
	m := e.Build("1", &scorelog.TagBlock{Tag: "gov"})
	m.Legend.Entries[0].Name = "Chaos"
	again := e.Build("1", &scorelog.TagBlock{Tag: "gov"})
	if again.Legend.Entries[0].Name != "Anarchy" {
		t.Error("legend content must never change")
	}
}

func TestBuild_EmptyState(t *testing.T) {
	m := newEngine().Build("", nil)
	if !m.IsEmpty() {
		t.Errorf("expected empty state, got %+v", m)
	}
	if m.Series == nil {
		t.Error("empty state should carry an empty, non-nil series list")
	}
}

func TestBuild_NoSeriesArrayHidesStats(t *testing.T) {
	m := newEngine().Build("1", &scorelog.TagBlock{Tag: "gold"})
	if m.Stats != nil {
		t.Errorf("stats should be hidden without a series array, got %+v", m.Stats)
	}
	if m.Series == nil || len(m.Series) != 0 {
		t.Errorf("expected empty plot series, got %v", m.Series)
	}
}

func TestBuild_PlainCapabilities(t *testing.T) {
	cfg := config.Default()
	cfg.Display.Capabilities = config.Capabilities{}
	m := NewEngine(cfg).Build("1", &scorelog.TagBlock{Tag: "gov", Series: []scorelog.PlayerSeries{
		{Name: "1 A", Data: []scorelog.Point{scorelog.Num(1, 2)}},
	}})
	if m.Legend != nil || m.Stats != nil {
		t.Errorf("plain viewer shows neither legend nor stats, got %+v", m)
	}
	if len(m.Series) != 1 {
		t.Errorf("plain viewer still plots series, got %d", len(m.Series))
	}
}

func TestComputeRows_ExcludesEmptyData(t *testing.T) {
	rows := ComputeRows([]scorelog.PlayerSeries{
		{Name: "1 Empty", Data: []scorelog.Point{}},
		{Name: "2 Nil"},
		{Name: "3 Real", Data: []scorelog.Point{scorelog.Num(1, 1)}},
	})
	if len(rows) != 1 || rows[0].Name != "Real" {
		t.Fatalf("expected only Real, got %+v", rows)
	}
}

func TestComputeRows_DegenerateSeriesIncludedLast(t *testing.T) {
	rows := ComputeRows([]scorelog.PlayerSeries{
		{Name: "1 Nulls", Data: []scorelog.Point{scorelog.Null(1), scorelog.Null(2)}},
		{Name: "2 Neg", Data: []scorelog.Point{scorelog.Num(1, -5)}},
	})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Name != "Neg" || rows[1].Name != "Nulls" {
		t.Errorf("degenerate series should sort last, got %+v", rows)
	}
	if rows[1].HasMax() || rows[1].MaxTurn != nil || rows[1].Total != 0 {
		t.Errorf("degenerate row: expected -Inf/nil/0, got %+v", rows[1])
	}

	raw, err := json.Marshal(Table{Rows: rows, ShowTotal: true})
	if err != nil {
		t.Fatalf("marshal with -Inf max: %v", err)
	}
	if !strings.Contains(string(raw), `"max":null`) {
		t.Errorf("expected null max for degenerate row, got %s", raw)
	}
}

func TestComputeRows_StableOnEqualMax(t *testing.T) {
	rows := ComputeRows([]scorelog.PlayerSeries{
		{Name: "1 First", Data: []scorelog.Point{scorelog.Num(1, 7)}},
		{Name: "2 Top", Data: []scorelog.Point{scorelog.Num(1, 9)}},
		{Name: "3 Second", Data: []scorelog.Point{scorelog.Num(4, 7)}},
	})
	got := []string{rows[0].Name, rows[1].Name, rows[2].Name}
	want := []string{"Top", "First", "Second"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestSummarize_EarliestTurnOnTie(t *testing.T) {
	r := Summarize(scorelog.PlayerSeries{Name: "x", Data: []scorelog.Point{
		scorelog.Num(1, 2), scorelog.Num(2, 8), scorelog.Num(3, 8), scorelog.Num(4, 1),
	}})
	if r.Max != 8 || *r.MaxTurn != 2 {
		t.Errorf("expected max 8 at turn 2, got %v at %v", r.Max, *r.MaxTurn)
	}
}

func TestSummarize_NonNumericIgnored(t *testing.T) {
	base := scorelog.PlayerSeries{Name: "x", Data: []scorelog.Point{
		scorelog.Num(1, 4), scorelog.Num(2, 6),
	}}
	withNull := scorelog.PlayerSeries{Name: "x", Data: []scorelog.Point{
		scorelog.Num(1, 4), {X: 2, Y: 1e9}, scorelog.Num(3, 6), scorelog.Null(4),
	}}
	a, b := Summarize(base), Summarize(withNull)
	if a.Max != b.Max || a.Total != b.Total {
		t.Errorf("non-numeric samples changed the result: %+v vs %+v", a, b)
	}
}

// Property: maxTurn points at a sample equal to max and nothing exceeds it;
// total is the sum of numeric samples only.
func TestSummarize_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 500; iter++ {
		n := 1 + rng.Intn(40)
		data := make([]scorelog.Point, n)
		wantTotal := 0.0
		anyNumeric := false
		for i := range data {
			x := float64(i + 1)
			if rng.Float64() < 0.2 {
				data[i] = scorelog.Null(x)
				continue
			}
			y := float64(rng.Intn(50) - 10)
			data[i] = scorelog.Num(x, y)
			wantTotal += y
			anyNumeric = true
		}

		r := Summarize(scorelog.PlayerSeries{Name: "p", Data: data})
		if r.Total != wantTotal {
			t.Fatalf("iter %d: total %v, want %v", iter, r.Total, wantTotal)
		}
		if !anyNumeric {
			if r.HasMax() || r.MaxTurn != nil {
				t.Fatalf("iter %d: expected no max, got %+v", iter, r)
			}
			continue
		}
		if r.MaxTurn == nil {
			t.Fatalf("iter %d: missing max turn", iter)
		}
		first := -1
		for i, p := range data {
			if !p.Valid {
				continue
			}
			if p.Y > r.Max {
				t.Fatalf("iter %d: sample %v exceeds max %v", iter, p.Y, r.Max)
			}
			if first < 0 && p.Y == r.Max {
				first = i
			}
		}
		if first < 0 || data[first].X != *r.MaxTurn {
			t.Fatalf("iter %d: max turn %v is not the earliest turn holding %v", iter, *r.MaxTurn, r.Max)
		}
		if math.IsNaN(r.Max) {
			t.Fatalf("iter %d: NaN max", iter)
		}
	}
}

func itoa(i int) string {
	b, _ := json.Marshal(i)
	return string(b)
}
