// Package session holds one viewer's selection state: the current source,
// its payload, the selected tag and the stacking toggle. Every change
// produces an Update carrying everything a front end needs to redraw.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/talgya/scorelog-viewer/internal/config"
	"github.com/talgya/scorelog-viewer/internal/present"
	"github.com/talgya/scorelog-viewer/internal/scorelog"
	"github.com/talgya/scorelog-viewer/internal/selection"
	"github.com/talgya/scorelog-viewer/internal/stats"
)

var (
	// ErrStale is returned by SelectSource when a newer selection started
	// while the load was in flight. Its result has been discarded.
	ErrStale = errors.New("selection superseded by a newer one")

	// ErrUnknownSource is returned for a source outside the candidate list.
	ErrUnknownSource = errors.New("unknown source")

	// ErrUnknownTag is returned for a tag id absent from the current payload.
	ErrUnknownTag = errors.New("unknown tag")

	// ErrNoSources is returned by Open when no candidates are configured.
	ErrNoSources = errors.New("no scorelog sources configured")
)

// Loader loads a payload by source id.
type Loader interface {
	Load(ctx context.Context, sourceID string) (*scorelog.Payload, error)
}

// SourceOption is one entry of the source selector.
type SourceOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// TagOption is one entry of the tag selector.
type TagOption struct {
	ID    string `json:"id"`
	Tag   string `json:"tag"`
	Label string `json:"label"`
}

// Update is the full display state after a change.
type Update struct {
	Generation   uint64              `json:"generation"`
	Sources      []SourceOption      `json:"sources"`
	Source       string              `json:"source"`
	Status       string              `json:"status"`
	Loading      bool                `json:"loading"`
	Tags         []TagOption         `json:"tags"`
	Tag          string              `json:"tag"`
	Stacked      bool                `json:"stacked"`
	Capabilities config.Capabilities `json:"capabilities"`
	Model        stats.RenderModel   `json:"-"`
	View         present.ChartView   `json:"view"`
}

// Controller owns one viewer's state. It is safe for concurrent use;
// loads run outside the lock and only the newest one is applied.
type Controller struct {
	loader  Loader
	engine  *stats.Engine
	sources []string

	mu       sync.Mutex
	gen      uint64
	source   string
	status   string
	loading  bool
	payload  *scorelog.Payload
	tags     []selection.TagEntry
	tag      string
	stacked  bool
	listener func(Update)
}

// New creates a controller over the configured candidate sources.
func New(l Loader, engine *stats.Engine, cfg config.Config) *Controller {
	caps := engine.Capabilities()
	return &Controller{
		loader:  l,
		engine:  engine,
		sources: selection.ListSources(cfg),
		payload: scorelog.Empty(),
		stacked: caps.Stacked && cfg.Display.StackedDefault,
	}
}

// OnLoading registers fn to receive the intermediate "Loading ..." update
// that SelectSource publishes before the load starts.
func (c *Controller) OnLoading(fn func(Update)) {
	c.mu.Lock()
	c.listener = fn
	c.mu.Unlock()
}

// Open resolves the initial source from the requested hint and loads it.
func (c *Controller) Open(ctx context.Context, requested string) (Update, error) {
	id, ok := selection.ResolveInitialSource(requested, c.sources)
	if !ok {
		return c.Snapshot(), ErrNoSources
	}
	return c.SelectSource(ctx, id)
}

// SelectSource loads id and selects its first sorted tag. On a failed
// load the display is reset to the empty state and the returned Update
// carries the failure as its status; the error is returned as well.
func (c *Controller) SelectSource(ctx context.Context, id string) (Update, error) {
	if !c.known(id) {
		return c.Snapshot(), fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.source = id
	c.status = fmt.Sprintf("Loading %s...", id)
	c.loading = true
	loading := c.snapshotLocked()
	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		listener(loading)
	}

	payload, err := c.loader.Load(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return c.snapshotLocked(), ErrStale
	}

	c.loading = false
	if err != nil {
		c.payload = scorelog.Empty()
		c.tags = nil
		c.tag = ""
		c.status = err.Error()
		return c.snapshotLocked(), err
	}

	c.payload = payload
	c.tags = selection.SortedTags(payload)
	c.tag, _ = selection.ResolveInitialTag(c.tags)
	c.status = fmt.Sprintf("Loaded %s.", id)
	return c.snapshotLocked(), nil
}

// SelectTag switches the displayed tag within the current payload. The
// empty id selects nothing and shows the empty state.
func (c *Controller) SelectTag(id string) (Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id != "" {
		if _, ok := c.payload.Block(id); !ok {
			return c.snapshotLocked(), fmt.Errorf("%w: %s", ErrUnknownTag, id)
		}
	}
	c.tag = id
	return c.snapshotLocked(), nil
}

// SetStacked toggles stacking. It has no effect when the viewer's
// capabilities do not offer stacking.
func (c *Controller) SetStacked(on bool) Update {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine.Capabilities().Stacked {
		c.stacked = on
	}
	return c.snapshotLocked()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) known(id string) bool {
	for _, s := range c.sources {
		if s == id {
			return true
		}
	}
	return false
}

func (c *Controller) snapshotLocked() Update {
	sources := make([]SourceOption, len(c.sources))
	for i, s := range c.sources {
		sources[i] = SourceOption{ID: s, Label: selection.SourceLabel(s)}
	}

	tags := make([]TagOption, len(c.tags))
	for i, t := range c.tags {
		tags[i] = TagOption{ID: t.ID, Tag: t.Block.Tag, Label: t.Label()}
	}

	model := stats.EmptyModel()
	if !c.loading && c.tag != "" {
		block, _ := c.payload.Block(c.tag)
		model = c.engine.Build(c.tag, block)
	}

	return Update{
		Generation:   c.gen,
		Sources:      sources,
		Source:       c.source,
		Status:       c.status,
		Loading:      c.loading,
		Tags:         tags,
		Tag:          c.tag,
		Stacked:      c.stacked,
		Capabilities: c.engine.Capabilities(),
		Model:        model,
		View:         present.Adapt(model, c.stacked),
	}
}
