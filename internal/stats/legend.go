package stats

import "github.com/talgya/scorelog-viewer/internal/config"

const (
	legendTitle = "Government Codes"
	legendNote  = "Taken from Freeciv government codes (common for classic rulesets)."
	legendLink  = "https://github.com/freeciv/freeciv/blob/master/common/government.h"
)

// Legend is the fixed government code table shown beside the gov tag.
type Legend struct {
	Title   string           `json:"title"`
	Entries []config.GovCode `json:"entries"`
	Note    string           `json:"note"`
	Link    string           `json:"link"`
}

func newGovernmentLegend(codes []config.GovCode) Legend {
	entries := make([]config.GovCode, len(codes))
	copy(entries, codes)
	return Legend{
		Title:   legendTitle,
		Entries: entries,
		Note:    legendNote,
		Link:    legendLink,
	}
}

func (l Legend) clone() Legend {
	out := l
	out.Entries = make([]config.GovCode, len(l.Entries))
	copy(out.Entries, l.Entries)
	return out
}

// Name looks up the display name of a government code.
func (l Legend) Name(code string) (string, bool) {
	for _, e := range l.Entries {
		if e.Code == code {
			return e.Name, true
		}
	}
	return "", false
}
