package core

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// NormalizeText replaces single and double quotes with spaces, collapses
// whitespace runs to a single space and trims the result.
func NormalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if r == '\'' || r == '"' || unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// HTMLStripper removes markup from CRM text fields before normalization.
type HTMLStripper struct {
	policy *bluemonday.Policy
}

// NewHTMLStripper returns a stripper using bluemonday's strict policy.
func NewHTMLStripper() *HTMLStripper {
	return &HTMLStripper{policy: bluemonday.StrictPolicy()}
}

// Strip drops every tag and unescapes HTML entities.
// Block-level boundaries become whitespace so adjacent words stay separate.
func (h *HTMLStripper) Strip(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	s = blockBoundaries.Replace(s)
	return html.UnescapeString(h.policy.Sanitize(s))
}

var blockBoundaries = strings.NewReplacer(
	"<br>", " <br>",
	"<br/>", " <br/>",
	"<br />", " <br />",
	"</p>", "</p> ",
	"</div>", "</div> ",
	"</li>", "</li> ",
	"</tr>", "</tr> ",
	"</td>", "</td> ",
)
