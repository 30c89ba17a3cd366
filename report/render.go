package report

import (
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/poiesic/verbatim/core"
)

// minimalGroup is the rendered form of a group without members.
type minimalGroup struct {
	RefID string  `json:"refid"`
	Type  string  `json:"type"`
	Score float64 `json:"score"`
}

// Render writes groups as an indented JSON array. Minimal reports carry no
// verbatim key. An empty report renders as [].
func Render(w io.Writer, groups []core.ReportGroup, format core.ReportFormat) error {
	var v any
	if format == core.FormatMinimal {
		minimal := make([]minimalGroup, len(groups))
		for i, g := range groups {
			minimal[i] = minimalGroup{RefID: g.RefID, Type: g.Type, Score: g.Score}
		}
		v = minimal
	} else {
		full := make([]core.ReportGroup, len(groups))
		for i, g := range groups {
			if g.Verbatims == nil {
				g.Verbatims = []core.ScoredVerbatim{}
			}
			full[i] = g
		}
		v = full
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "rendering report")
	}
	return nil
}
