// Package selection decides which scorelog source and which tag a viewer
// shows first, and in which order tags are offered.
package selection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/talgya/scorelog-viewer/internal/config"
	"github.com/talgya/scorelog-viewer/internal/scorelog"
)

// TagEntry is one selectable tag.
type TagEntry struct {
	ID    string
	Block *scorelog.TagBlock
}

// Label returns the option text shown for the tag, e.g. "gold (tag 3)".
func (e TagEntry) Label() string {
	return fmt.Sprintf("%s (tag %s)", e.Block.Tag, e.ID)
}

// ListSources returns the configured candidate sources in declared order.
func ListSources(cfg config.Config) []string {
	out := make([]string, len(cfg.Sources.Files))
	copy(out, cfg.Sources.Files)
	return out
}

// SourceLabel returns the display name of a source: its last path element.
func SourceLabel(sourceID string) string {
	if i := strings.LastIndex(sourceID, "/"); i >= 0 {
		return sourceID[i+1:]
	}
	return sourceID
}

// ResolveInitialSource returns requested when it is one of available,
// otherwise the first available source. ok is false only when available
// is empty.
func ResolveInitialSource(requested string, available []string) (string, bool) {
	if len(available) == 0 {
		return "", false
	}
	if requested != "" {
		for _, s := range available {
			if s == requested {
				return s, true
			}
		}
	}
	return available[0], true
}

// SortedTags orders the payload's tags by display name, byte-wise and
// case-sensitively. Tags with equal names keep their mapping order.
func SortedTags(p *scorelog.Payload) []TagEntry {
	entries := p.Entries()
	out := make([]TagEntry, 0, len(entries))
	for _, e := range entries {
		block := e.Block
		if block == nil {
			block = &scorelog.TagBlock{}
		}
		out = append(out, TagEntry{ID: e.ID, Block: block})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Block.Tag < out[j].Block.Tag
	})
	return out
}

// ResolveInitialTag returns the first sorted tag id.
func ResolveInitialTag(sorted []TagEntry) (string, bool) {
	if len(sorted) == 0 {
		return "", false
	}
	return sorted[0].ID, true
}
