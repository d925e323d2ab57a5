// Package render converts model output into HTML that is safe to embed in a page.
package render

import (
	"bytes"
	"html"
	"log"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Markdown renders extended markdown (tables, fenced code, footnotes,
// definition lists, attribute blocks) and sanitizes the result.
type Markdown struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewMarkdown builds a renderer with the UGC sanitizing policy.
func NewMarkdown() *Markdown {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			extension.DefinitionList,
		),
		goldmark.WithParserOptions(
			parser.WithAttribute(),
		),
	)

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre", "div", "sup", "li", "a")

	return &Markdown{md: md, policy: policy}
}

// Render is a pure text -> markup conversion. Raw HTML in the input is never
// passed through as active markup.
func (m *Markdown) Render(text string) string {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(text), &buf); err != nil {
		log.Printf("[render] markdown conversion failed, escaping text: %v", err)
		return "<p>" + html.EscapeString(text) + "</p>"
	}
	return m.policy.Sanitize(buf.String())
}
