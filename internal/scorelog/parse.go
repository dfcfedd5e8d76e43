package scorelog

import (
	"errors"
	"math"

	"github.com/tidwall/gjson"
)

// ErrUnparseable is returned by Parse when the body is not valid JSON.
var ErrUnparseable = errors.New("scorelog: payload is not valid JSON")

// Parse reads a scorelog document. Only the structure needed for display
// is checked: a missing or non-object seriesByTag yields an empty payload,
// non-object series entries are skipped, and any y that is not a JSON
// number becomes a null sample. Numbers outside the float64 range (1e400)
// count as non-numeric, and such an x reads as turn 0.
//
// Invalid JSON yields an empty payload flagged Unparseable together with
// ErrUnparseable, so callers can choose to collapse or surface it.
func Parse(data []byte) (*Payload, error) {
	p := Empty()
	if !gjson.ValidBytes(data) {
		p.Unparseable = true
		return p, ErrUnparseable
	}

	tags := gjson.GetBytes(data, "seriesByTag")
	if !tags.IsObject() {
		return p, nil
	}

	// ForEach walks object keys in document order.
	tags.ForEach(func(key, value gjson.Result) bool {
		p.Add(key.String(), parseBlock(value))
		return true
	})
	return p, nil
}

func parseBlock(v gjson.Result) *TagBlock {
	block := &TagBlock{Tag: v.Get("tag").String()}

	series := v.Get("series")
	if !series.IsArray() {
		return block
	}

	block.Series = []PlayerSeries{}
	series.ForEach(func(_, s gjson.Result) bool {
		if !s.IsObject() {
			return true
		}
		block.Series = append(block.Series, parseSeries(s))
		return true
	})
	return block
}

func parseSeries(s gjson.Result) PlayerSeries {
	ps := PlayerSeries{Name: s.Get("name").String()}

	data := s.Get("data")
	if !data.IsArray() {
		return ps
	}

	ps.Data = []Point{}
	data.ForEach(func(_, d gjson.Result) bool {
		pt := Point{X: d.Get("x").Float()}
		if !isFinite(pt.X) {
			pt.X = 0
		}
		if y := d.Get("y"); y.Type == gjson.Number && isFinite(y.Num) {
			pt.Y = y.Num
			pt.Valid = true
		}
		ps.Data = append(ps.Data, pt)
		return true
	})
	return ps
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}
