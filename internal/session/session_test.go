package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/talgya/scorelog-viewer/internal/config"
	"github.com/talgya/scorelog-viewer/internal/loader"
	"github.com/talgya/scorelog-viewer/internal/scorelog"
	"github.com/talgya/scorelog-viewer/internal/stats"
)

const goldDoc = `{"seriesByTag":{
	"3":{"tag":"gold","series":[
		{"name":"1 Romans","data":[{"x":1,"y":10},{"x":2,"y":5}]},
		{"name":"2 Greeks","data":[{"x":1,"y":3},{"x":2,"y":20}]}
	]},
	"1":{"tag":"score","series":[{"name":"1 Romans","data":[{"x":1,"y":1}]}]},
	"7":{"tag":"gov","series":[{"name":"1 Romans","data":[{"x":1,"y":1}]}]}
}}`

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Sources.Files = []string{"json/a.json", "json/b.json", "json/missing.json"}
	return cfg
}

func docLoader(docs map[string]string) *loader.Loader {
	return loader.New(loader.FetcherFunc(func(ctx context.Context, id string) ([]byte, error) {
		doc, ok := docs[id]
		if !ok {
			return nil, &loader.LoadError{SourceID: id, StatusCode: 404}
		}
		return []byte(doc), nil
	}), nil)
}

func newController(t *testing.T, l Loader) *Controller {
	t.Helper()
	cfg := testConfig()
	return New(l, stats.NewEngine(cfg), cfg)
}

func TestOpen_EndToEnd(t *testing.T) {
	c := newController(t, docLoader(map[string]string{"json/b.json": goldDoc}))

	u, err := c.Open(context.Background(), "json/b.json")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if u.Source != "json/b.json" || u.Status != "Loaded json/b.json." {
		t.Errorf("unexpected source/status %q / %q", u.Source, u.Status)
	}

	// Sorted by tag name: gold, gov, score.
	var names []string
	for _, tag := range u.Tags {
		names = append(names, tag.Tag)
	}
	if strings.Join(names, ",") != "gold,gov,score" {
		t.Errorf("Expected gold,gov,score, got %v", names)
	}
	if u.Tag != "3" || u.Tags[0].Label != "gold (tag 3)" {
		t.Errorf("Expected gold selected first, got %q / %q", u.Tag, u.Tags[0].Label)
	}

	if !u.View.ShowStats || u.View.ShowLegend {
		t.Errorf("gold: expected stats shown, legend hidden")
	}
	rows := u.Model.Stats.Rows
	if len(rows) != 2 || rows[0].Name != "Greeks" || rows[0].Total != 23 || *rows[0].MaxTurn != 2 {
		t.Errorf("unexpected rows %+v", rows)
	}
	if u.Sources[1].Label != "b.json" {
		t.Errorf("Expected base name label, got %q", u.Sources[1].Label)
	}
}

func TestOpen_UnknownHintFallsBack(t *testing.T) {
	c := newController(t, docLoader(map[string]string{"json/a.json": goldDoc}))
	u, err := c.Open(context.Background(), "json/nope.json")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if u.Source != "json/a.json" {
		t.Errorf("Expected first candidate, got %q", u.Source)
	}
}

func TestOpen_NoSources(t *testing.T) {
	cfg := testConfig()
	cfg.Sources.Files = nil
	c := New(docLoader(nil), stats.NewEngine(cfg), cfg)
	if _, err := c.Open(context.Background(), ""); !errors.Is(err, ErrNoSources) {
		t.Errorf("Expected ErrNoSources, got %v", err)
	}
}

func TestSelectSource_FailureResetsDisplay(t *testing.T) {
	c := newController(t, docLoader(map[string]string{"json/a.json": goldDoc}))
	if _, err := c.SelectSource(context.Background(), "json/a.json"); err != nil {
		t.Fatal(err)
	}

	u, err := c.SelectSource(context.Background(), "json/missing.json")
	var le *loader.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("Expected LoadError, got %v", err)
	}
	if u.Status != "Failed to load json/missing.json: 404" {
		t.Errorf("unexpected status %q", u.Status)
	}
	if len(u.Tags) != 0 || u.Tag != "" || !u.Model.IsEmpty() {
		t.Errorf("failed load must leave the empty state, got %+v", u)
	}
	if u.View.ShowStats || u.View.ShowLegend || len(u.View.Series) != 0 {
		t.Errorf("view not cleared: %+v", u.View)
	}
}

func TestSelectSource_Unknown(t *testing.T) {
	c := newController(t, docLoader(nil))
	if _, err := c.SelectSource(context.Background(), "elsewhere.json"); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("Expected ErrUnknownSource, got %v", err)
	}
}

func TestSelectSource_UnparseableShowsNoTags(t *testing.T) {
	c := newController(t, docLoader(map[string]string{"json/a.json": "not json"}))
	u, err := c.SelectSource(context.Background(), "json/a.json")
	if err != nil {
		t.Fatalf("unparseable payload is not a load failure, got %v", err)
	}
	if len(u.Tags) != 0 || !u.Model.IsEmpty() {
		t.Errorf("Expected no tags, got %+v", u.Tags)
	}
}

func TestSelectTag(t *testing.T) {
	c := newController(t, docLoader(map[string]string{"json/a.json": goldDoc}))
	if _, err := c.SelectSource(context.Background(), "json/a.json"); err != nil {
		t.Fatal(err)
	}

	u, err := c.SelectTag("7")
	if err != nil {
		t.Fatalf("SelectTag: %v", err)
	}
	if !u.View.ShowLegend || u.View.Legend == nil || len(u.View.Legend.Entries) != 21 {
		t.Errorf("gov must show the 21-entry legend, got %+v", u.View.Legend)
	}

	u, err = c.SelectTag("1")
	if err != nil {
		t.Fatal(err)
	}
	if u.View.ShowLegend || u.Model.Stats.ShowTotal || u.Model.Stats.Advisory != stats.CumulativeAdvisory {
		t.Errorf("score: legend hidden, total omitted with advisory; got %+v", u.Model.Stats)
	}

	if _, err := c.SelectTag("99"); !errors.Is(err, ErrUnknownTag) {
		t.Errorf("Expected ErrUnknownTag, got %v", err)
	}

	u, err = c.SelectTag("")
	if err != nil || !u.Model.IsEmpty() {
		t.Errorf("empty tag must give the empty state, got %v / %+v", err, u.Model)
	}
}

func TestSetStacked(t *testing.T) {
	c := newController(t, docLoader(map[string]string{"json/a.json": goldDoc}))
	if _, err := c.SelectSource(context.Background(), "json/a.json"); err != nil {
		t.Fatal(err)
	}
	u := c.SetStacked(true)
	if !u.Stacked || !u.View.Options.Chart.Stacked {
		t.Error("stacking not applied to the view")
	}
	if len(u.View.Series) != 2 {
		t.Error("stacking must not change the selection")
	}

	cfg := testConfig()
	cfg.Display.Capabilities = config.Capabilities{}
	plain := New(docLoader(nil), stats.NewEngine(cfg), cfg)
	if plain.SetStacked(true).Stacked {
		t.Error("plain viewer must ignore the stacking toggle")
	}
}

// gatedLoader blocks each load until its gate is released.
type gatedLoader struct {
	gates   map[string]chan struct{}
	started chan string
	inner   Loader
}

func (g *gatedLoader) Load(ctx context.Context, id string) (*scorelog.Payload, error) {
	g.started <- id
	<-g.gates[id]
	return g.inner.Load(ctx, id)
}

func TestSelectSource_StaleLoadDiscarded(t *testing.T) {
	g := &gatedLoader{
		gates:   map[string]chan struct{}{"json/a.json": make(chan struct{}), "json/b.json": make(chan struct{})},
		started: make(chan string, 2),
		inner: docLoader(map[string]string{
			"json/a.json": `{"seriesByTag":{"1":{"tag":"alpha","series":[]}}}`,
			"json/b.json": `{"seriesByTag":{"1":{"tag":"beta","series":[]}}}`,
		}),
	}
	c := newController(t, g)

	type result struct {
		u   Update
		err error
	}
	first := make(chan result, 1)
	go func() {
		u, err := c.SelectSource(context.Background(), "json/a.json")
		first <- result{u, err}
	}()
	<-g.started

	second := make(chan result, 1)
	go func() {
		u, err := c.SelectSource(context.Background(), "json/b.json")
		second <- result{u, err}
	}()
	<-g.started

	// Newer load finishes first, then the older one resolves late.
	close(g.gates["json/b.json"])
	r2 := <-second
	if r2.err != nil {
		t.Fatalf("newer load: %v", r2.err)
	}
	close(g.gates["json/a.json"])
	r1 := <-first
	if !errors.Is(r1.err, ErrStale) {
		t.Fatalf("Expected ErrStale for the older load, got %v", r1.err)
	}

	u := c.Snapshot()
	if u.Source != "json/b.json" || len(u.Tags) != 1 || u.Tags[0].Tag != "beta" {
		t.Errorf("stale load overwrote newer state: %+v", u)
	}
}

func TestOnLoadingPublishesIntermediateState(t *testing.T) {
	c := newController(t, docLoader(map[string]string{"json/a.json": goldDoc}))
	var seen []Update
	c.OnLoading(func(u Update) { seen = append(seen, u) })

	if _, err := c.SelectSource(context.Background(), "json/a.json"); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 || !seen[0].Loading || seen[0].Status != "Loading json/a.json..." {
		t.Errorf("unexpected loading updates %+v", seen)
	}
	if !seen[0].Model.IsEmpty() {
		t.Error("loading state must not show data")
	}
}
