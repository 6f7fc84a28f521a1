package model

import "sort"

// Document is a brief as served by the game server. Immutable for a view session.
type Document struct {
	ID         string      `json:"brief_id,omitempty"`
	Title      string      `json:"title,omitempty"`
	CaseName   string      `json:"case_name,omitempty"`
	Paragraphs []Paragraph `json:"paragraphs"`
}

// ParagraphType classifies how a paragraph is laid out
type ParagraphType string

const (
	ParagraphBody       ParagraphType = "body"
	ParagraphHeading    ParagraphType = "heading"
	ParagraphBlockQuote ParagraphType = "block_quote"
	ParagraphFootnote   ParagraphType = "footnote"
	ParagraphCaption    ParagraphType = "caption"
	ParagraphSignature  ParagraphType = "signature"
)

// Paragraph is one block of brief text with the citations marked inside it
type Paragraph struct {
	ID        string        `json:"id"`
	Type      ParagraphType `json:"type"`
	Text      string        `json:"text"`
	Citations []Citation    `json:"citations,omitempty"`
}

// Citation marks a reference to an authority inside a paragraph.
// Start and End are half-open rune offsets into Paragraph.Text.
type Citation struct {
	CitationID  string `json:"citation_id"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	DisplayText string `json:"display_text"`
	Supra       bool   `json:"supra,omitempty"` // Repeat reference sharing CitationID with its primary
}

// SortedCitations returns a copy of the paragraph's citations ordered by Start
func (p Paragraph) SortedCitations() []Citation {
	cites := make([]Citation, len(p.Citations))
	copy(cites, p.Citations)
	sort.SliceStable(cites, func(i, j int) bool { return cites[i].Start < cites[j].Start })
	return cites
}

// CitationIDs returns the distinct citation IDs of the document in order of first appearance.
// Supra references collapse onto the ID they share with their primary citation.
func (d Document) CitationIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, para := range d.Paragraphs {
		for _, cite := range para.SortedCitations() {
			if seen[cite.CitationID] {
				continue
			}
			seen[cite.CitationID] = true
			ids = append(ids, cite.CitationID)
		}
	}
	return ids
}

// DisplayText returns the display text of the primary (non-supra) citation for id.
// Falls back to the first supra mention, then to the id itself.
func (d Document) DisplayText(citationID string) string {
	fallback := ""
	for _, para := range d.Paragraphs {
		for _, cite := range para.Citations {
			if cite.CitationID != citationID {
				continue
			}
			if !cite.Supra {
				return cite.DisplayText
			}
			if fallback == "" {
				fallback = cite.DisplayText
			}
		}
	}
	if fallback != "" {
		return fallback
	}
	return citationID
}
