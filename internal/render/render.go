// Package render turns briefs into HTML fragments. Citations are painted over
// text highlights; every piece of document text is escaped.
package render

import (
	"fmt"
	"strings"

	"github.com/ppiankov/citegame/internal/model"
	"github.com/ppiankov/citegame/internal/overlay"
)

const (
	setCitations = iota
	setHighlights
)

// Options controls how a brief is painted. All fields are optional.
type Options struct {
	// Highlights returns the text regions to mark inside one paragraph
	Highlights func(text string) []overlay.Range
	// CitationClasses returns extra classes for a citation span
	CitationClasses func(c model.Citation) []string
	// HighlightClasses returns extra classes for a highlight span
	HighlightClasses func(r overlay.Range) []string
	// DisplayText paints a citation's display text instead of the text it covers
	DisplayText bool
}

// Brief renders every paragraph of doc
func Brief(doc model.Document, opts Options) (string, error) {
	var b strings.Builder
	for _, para := range doc.Paragraphs {
		html, err := Paragraph(para, opts)
		if err != nil {
			return "", err
		}
		b.WriteString(html)
	}
	return b.String(), nil
}

// Paragraph renders one paragraph as a div
func Paragraph(para model.Paragraph, opts Options) (string, error) {
	cites := para.SortedCitations()
	byStart := make(map[int]model.Citation, len(cites))
	citeSet := make(overlay.RangeSet, 0, len(cites))
	for _, c := range cites {
		byStart[c.Start] = c
		citeSet = append(citeSet, overlay.Range{Start: c.Start, End: c.End, Key: c.CitationID})
	}

	var highlights overlay.RangeSet
	if opts.Highlights != nil {
		highlights = opts.Highlights(para.Text)
	}

	segments, err := overlay.Render(para.Text, []overlay.RangeSet{citeSet, highlights}, overlay.Escape)
	if err != nil {
		return "", fmt.Errorf("render paragraph %s: %w", para.ID, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<div class="%s" data-para-id="%s">`, classAttr("paragraph", string(para.Type)), attr(para.ID))
	for _, seg := range segments {
		switch seg.Kind {
		case setCitations:
			cite := byStart[seg.Range.Start]
			classes := []string{"citation"}
			if cite.Supra {
				classes = append(classes, "supra")
			}
			if opts.CitationClasses != nil {
				classes = append(classes, opts.CitationClasses(cite)...)
			}
			text := seg.Text
			if opts.DisplayText && cite.DisplayText != "" {
				text = overlay.Escape(cite.DisplayText)
			}
			fmt.Fprintf(&b, `<span class="%s" data-cite-id="%s">%s</span>`, classAttr(classes...), attr(cite.CitationID), text)
		case setHighlights:
			classes := []string{"text-highlight"}
			if opts.HighlightClasses != nil {
				classes = append(classes, opts.HighlightClasses(*seg.Range)...)
			}
			fmt.Fprintf(&b, `<span class="%s">%s</span>`, classAttr(classes...), seg.Text)
		default:
			b.WriteString(seg.Text)
		}
	}
	b.WriteString("</div>")
	return b.String(), nil
}

func classAttr(classes ...string) string {
	var kept []string
	for _, c := range classes {
		if c = strings.TrimSpace(c); c != "" {
			kept = append(kept, c)
		}
	}
	return attr(strings.Join(kept, " "))
}

func attr(s string) string {
	return overlay.Escape(s)
}
