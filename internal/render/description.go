package render

import (
	"bytes"
	"strings"

	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"finitefield.org/seed-web/internal/straindata"
)

var (
	markdown          = goldmark.New()
	descriptionPolicy = newDescriptionPolicy()
)

func newDescriptionPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("span", "em", "strong")
	policy.RequireNoFollowOnLinks(true)
	return policy
}

// DescriptionHTML converts description text to sanitized inline HTML. A single
// paragraph loses its wrapping <p> so it can follow the strain name.
func DescriptionHTML(text string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return templ.EscapeString(text)
	}
	out := strings.TrimSpace(descriptionPolicy.Sanitize(buf.String()))
	if strings.Count(out, "<p>") == 1 && strings.HasPrefix(out, "<p>") && strings.HasSuffix(out, "</p>") {
		out = strings.TrimSuffix(strings.TrimPrefix(out, "<p>"), "</p>")
	}
	return out
}

// DescriptionProps configures the description panel.
type DescriptionProps struct {
	ElementID   string
	Description straindata.Description
	// OOB marks the panel for an out-of-band swap next to a tree fragment.
	OOB bool
}
