// Package demo generates synthetic scorelogs for trying the viewer
// without a real game. Output is deterministic for a given seed.
package demo

import (
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/scorelog-viewer/internal/scorelog"
)

// Options controls demo generation.
type Options struct {
	Seed    int64
	Players int
	Turns   int
}

// DefaultOptions returns a small game: 5 players over 120 turns.
func DefaultOptions(seed int64) Options {
	return Options{Seed: seed, Players: 5, Turns: 120}
}

var nations = []string{
	"Romans", "Greeks", "Babylonians", "Egyptians", "Vikings",
	"Chinese", "Aztecs", "Mongols", "Zulus", "Celts",
}

// tagShape describes how one tag's values evolve over a game.
type tagShape struct {
	tag        string
	scale      float64 // per-turn magnitude
	cumulative bool    // running sum of noisy increments
	frequency  float64
}

// Tag ids are assigned in this order, which is deliberately not sorted
// by name.
var shapes = []tagShape{
	{tag: "score", scale: 4, cumulative: true, frequency: 0.05},
	{tag: "gold", scale: 300, frequency: 0.04},
	{tag: "production", scale: 60, frequency: 0.03},
	{tag: "pollution", scale: 25, frequency: 0.07},
	{tag: "gov", frequency: 0.02},
	{tag: "mfg", scale: 40, frequency: 0.05},
	{tag: "cities", scale: 0.25, cumulative: true, frequency: 0.02},
	{tag: "techs", scale: 0.6, cumulative: true, frequency: 0.03},
}

// Generate builds a payload with one tag block per shape and one series
// per player. The last player is destroyed four fifths of the way in;
// their later samples are null.
func Generate(opts Options) *scorelog.Payload {
	if opts.Players <= 0 {
		opts.Players = 1
	}
	if opts.Players > len(nations) {
		opts.Players = len(nations)
	}
	if opts.Turns <= 0 {
		opts.Turns = 1
	}
	destroyedAt := opts.Turns * 4 / 5

	p := scorelog.Empty()
	for ti, shape := range shapes {
		noise := opensimplex.NewNormalized(opts.Seed + int64(ti))
		block := &scorelog.TagBlock{Tag: shape.tag, Series: make([]scorelog.PlayerSeries, 0, opts.Players)}

		for pi := 0; pi < opts.Players; pi++ {
			data := make([]scorelog.Point, 0, opts.Turns)
			running := 0.0
			for turn := 1; turn <= opts.Turns; turn++ {
				x := float64(turn)
				if pi == opts.Players-1 && opts.Players > 1 && turn > destroyedAt {
					data = append(data, scorelog.Null(x))
					continue
				}
				n := octaveNoise(noise, x, float64(pi)*17, 3, shape.frequency, 0.5)
				data = append(data, scorelog.Num(x, shapeValue(shape, n, turn, &running)))
			}
			block.Series = append(block.Series, scorelog.PlayerSeries{
				Name: fmt.Sprintf("%d %s", pi, nations[pi]),
				Data: data,
			})
		}
		p.Add(fmt.Sprintf("%d", ti), block)
	}
	return p
}

func shapeValue(shape tagShape, n float64, turn int, running *float64) float64 {
	switch {
	case shape.tag == "gov":
		// Government changes slowly; early turns stay in despotism.
		if turn < 10 {
			return 1
		}
		return math.Min(19, math.Floor(n*20))
	case shape.cumulative:
		*running += shape.scale * n * 2
		return math.Round(*running)
	default:
		growth := 0.4 + float64(turn)/100
		return math.Round(shape.scale * n * growth)
	}
}

// octaveNoise layers several frequencies of normalized noise.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
