package selection

import (
	"testing"

	"github.com/talgya/scorelog-viewer/internal/config"
	"github.com/talgya/scorelog-viewer/internal/scorelog"
)

func TestResolveInitialSource(t *testing.T) {
	available := []string{"a.json", "b.json"}
	tests := []struct {
		requested string
		want      string
	}{
		{"c.json", "a.json"},
		{"b.json", "b.json"},
		{"", "a.json"},
		{"B.json", "a.json"},
	}
	for _, tt := range tests {
		got, ok := ResolveInitialSource(tt.requested, available)
		if !ok || got != tt.want {
			t.Errorf("ResolveInitialSource(%q) = %q, %v; want %q", tt.requested, got, ok, tt.want)
		}
	}

	if got, ok := ResolveInitialSource("a.json", nil); ok || got != "" {
		t.Errorf("expected no source from empty list, got %q, %v", got, ok)
	}
}

func TestListSources_DeclaredOrderAndCopy(t *testing.T) {
	cfg := config.Default()
	cfg.Sources.Files = []string{"z.json", "a.json"}

	got := ListSources(cfg)
	if len(got) != 2 || got[0] != "z.json" || got[1] != "a.json" {
		t.Fatalf("unexpected sources: %v", got)
	}
	got[0] = "mutated"
	if cfg.Sources.Files[0] != "z.json" {
		t.Error("ListSources must not expose the configured slice")
	}
}

func TestSourceLabel(t *testing.T) {
	if got := SourceLabel("json/demo1.json"); got != "demo1.json" {
		t.Errorf("expected demo1.json, got %q", got)
	}
	if got := SourceLabel("plain.json"); got != "plain.json" {
		t.Errorf("expected plain.json, got %q", got)
	}
}

func payloadOf(pairs ...string) *scorelog.Payload {
	p := scorelog.Empty()
	for i := 0; i+1 < len(pairs); i += 2 {
		p.Add(pairs[i], &scorelog.TagBlock{Tag: pairs[i+1]})
	}
	return p
}

func TestSortedTags_ByNameCaseSensitive(t *testing.T) {
	p := payloadOf("1", "score", "2", "Gold", "3", "gold", "4", "cities")
	sorted := SortedTags(p)

	want := []string{"2", "4", "3", "1"} // "Gold" < "cities" < "gold" < "score"
	for i, id := range want {
		if sorted[i].ID != id {
			t.Fatalf("position %d: expected id %s, got %s (%v)", i, id, sorted[i].ID, ids(sorted))
		}
	}
}

func TestSortedTags_StableOnEqualNames(t *testing.T) {
	p := payloadOf("9", "dup", "1", "dup", "5", "aaa", "3", "dup")
	for run := 0; run < 5; run++ {
		sorted := SortedTags(p)
		got := ids(sorted)
		want := []string{"5", "9", "1", "3"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("run %d: expected %v, got %v", run, want, got)
			}
		}
	}
}

func TestResolveInitialTag(t *testing.T) {
	if _, ok := ResolveInitialTag(nil); ok {
		t.Error("expected no tag for empty list")
	}
	sorted := SortedTags(payloadOf("7", "pop", "8", "gold"))
	got, ok := ResolveInitialTag(sorted)
	if !ok || got != "8" {
		t.Errorf("expected tag 8, got %q, %v", got, ok)
	}
	if label := sorted[0].Label(); label != "gold (tag 8)" {
		t.Errorf("unexpected label %q", label)
	}
}

func ids(entries []TagEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
