// Package scorelog holds the scorelog document model: per-tag series of
// per-player (turn, value) points, as exported by a game server's
// score log and consumed by the viewer.
package scorelog

import (
	"bytes"
	"encoding/json"
	"math"
)

// Point is one sample of a player series. Y is meaningful only when Valid
// is set; absent, null and non-numeric values arrive with Valid == false.
type Point struct {
	X     float64
	Y     float64
	Valid bool
}

// Num returns a valid point.
func Num(x, y float64) Point {
	return Point{X: x, Y: y, Valid: true}
}

// Null returns a point with no usable value.
func Null(x float64) Point {
	return Point{X: x}
}

// MarshalJSON emits {"x":…,"y":…}, with y null for non-numeric samples.
// JSON has no infinities: a non-finite y is emitted as null and a
// non-finite x as 0.
func (p Point) MarshalJSON() ([]byte, error) {
	out := struct {
		X float64  `json:"x"`
		Y *float64 `json:"y"`
	}{}
	if isFinite(p.X) {
		out.X = p.X
	}
	if p.Valid {
		out.Y = Finite(p.Y)
	}
	return json.Marshal(out)
}

// Finite returns a pointer to v, or nil when v is NaN or infinite.
func Finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// PlayerSeries is one player's samples for a tag.
type PlayerSeries struct {
	Name string  `json:"name"` // may carry a numeric player id prefix
	Data []Point `json:"data"`
}

// TagBlock is one statistic across all players. Series is nil when the
// source block carried no series array at all.
type TagBlock struct {
	Tag    string         `json:"tag"`
	Series []PlayerSeries `json:"series"`
}

// HasSeries reports whether the block carried a series array.
func (b *TagBlock) HasSeries() bool {
	return b != nil && b.Series != nil
}

// Entry pairs a tag id with its block.
type Entry struct {
	ID    string
	Block *TagBlock
}

// Payload maps tag ids to tag blocks, remembering the order in which the
// ids appeared in the source document.
type Payload struct {
	entries []Entry
	index   map[string]int

	// Unparseable is set when the source body was not valid JSON and the
	// payload was collapsed to an empty mapping.
	Unparseable bool
}

// Empty returns a payload with no tags.
func Empty() *Payload {
	return &Payload{index: make(map[string]int)}
}

// NewPayload builds a payload from entries in the given order.
func NewPayload(entries ...Entry) *Payload {
	p := Empty()
	for _, e := range entries {
		p.Add(e.ID, e.Block)
	}
	return p
}

// Add inserts or replaces the block for id. A replaced id keeps its
// original position.
func (p *Payload) Add(id string, block *TagBlock) {
	if p.index == nil {
		p.index = make(map[string]int)
	}
	if i, ok := p.index[id]; ok {
		p.entries[i].Block = block
		return
	}
	p.index[id] = len(p.entries)
	p.entries = append(p.entries, Entry{ID: id, Block: block})
}

// Len returns the number of tags.
func (p *Payload) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// Entries returns the tags in mapping order.
func (p *Payload) Entries() []Entry {
	if p == nil {
		return nil
	}
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Block looks up a tag block by id.
func (p *Payload) Block(id string) (*TagBlock, bool) {
	if p == nil {
		return nil, false
	}
	i, ok := p.index[id]
	if !ok {
		return nil, false
	}
	return p.entries[i].Block, true
}

// MarshalJSON writes {"seriesByTag":{…}} with tags in mapping order.
func (p *Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"seriesByTag":{`)
	for i, e := range p.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.ID)
		if err != nil {
			return nil, err
		}
		block, err := json.Marshal(e.Block)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(block)
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}
