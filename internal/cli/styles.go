package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/citegame/internal/model"
	"github.com/ppiankov/citegame/internal/overlay"
)

var (
	colorAccent  = lipgloss.Color("#58a6ff")
	colorWarning = lipgloss.Color("#f85149")
	colorOK      = lipgloss.Color("#3fb950")
	colorMuted   = lipgloss.Color("#8b949e")
	colorSwap    = lipgloss.Color("#d29922")

	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	mutedStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	okStyle        = lipgloss.NewStyle().Foreground(colorOK)
	errorStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorWarning)
	citationStyle  = lipgloss.NewStyle().Underline(true)
	swappedStyle   = lipgloss.NewStyle().Underline(true).Foreground(colorSwap)
	highlightStyle = lipgloss.NewStyle().Reverse(true)
	fakeStyle      = lipgloss.NewStyle().Underline(true).Foreground(colorWarning)
	legitStyle     = lipgloss.NewStyle().Underline(true).Foreground(colorOK)

	timerStyle        = lipgloss.NewStyle().Bold(true).Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent)
	timerWarningStyle = timerStyle.Foreground(colorWarning).BorderForeground(colorWarning)
)

// Range set order handed to overlay.Render
const (
	citationSet = iota
	highlightSet
)

// renderClock styles the countdown; under the warning threshold it turns red
func renderClock(text string, warning bool) string {
	if warning {
		return timerWarningStyle.Render(text)
	}
	return timerStyle.Render(text)
}

// briefStyles decides how citations and highlights look in the terminal
type briefStyles struct {
	citation   func(c model.Citation) lipgloss.Style
	highlights func(text string) []overlay.Range
	// displayText prints a citation's display text instead of the text it covers
	displayText bool
}

// printBrief writes a brief to the terminal, one paragraph per block, with
// citations painted over highlights the same way the HTML renderer does
func printBrief(w io.Writer, doc model.Document, styles briefStyles) error {
	if doc.Title != "" {
		fmt.Fprintln(w, titleStyle.Render(doc.Title))
		fmt.Fprintln(w)
	}
	for _, para := range doc.Paragraphs {
		line, err := terminalParagraph(para, styles)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, line)
		fmt.Fprintln(w)
	}
	return nil
}

func terminalParagraph(para model.Paragraph, styles briefStyles) (string, error) {
	cites := para.SortedCitations()
	byStart := make(map[int]model.Citation, len(cites))
	citeSet := make(overlay.RangeSet, 0, len(cites))
	for _, c := range cites {
		byStart[c.Start] = c
		citeSet = append(citeSet, overlay.Range{Start: c.Start, End: c.End, Key: c.CitationID})
	}
	var highlights overlay.RangeSet
	if styles.highlights != nil {
		highlights = styles.highlights(para.Text)
	}

	segments, err := overlay.Render(para.Text, []overlay.RangeSet{citeSet, highlights}, overlay.Identity)
	if err != nil {
		return "", fmt.Errorf("paragraph %s: %w", para.ID, err)
	}

	var b strings.Builder
	for _, seg := range segments {
		switch seg.Kind {
		case citationSet:
			cite := byStart[seg.Range.Start]
			style := citationStyle
			if styles.citation != nil {
				style = styles.citation(cite)
			}
			text := seg.Text
			if styles.displayText && cite.DisplayText != "" {
				text = cite.DisplayText
			}
			fmt.Fprintf(&b, "%s%s", style.Render(text), mutedStyle.Render("["+cite.CitationID+"]"))
		case highlightSet:
			b.WriteString(highlightStyle.Render(seg.Text))
		default:
			b.WriteString(seg.Text)
		}
	}
	return b.String(), nil
}
