// Package report builds the standalone end-of-game HTML report
package report

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/citegame/internal/model"
	"github.com/ppiankov/citegame/internal/render"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format("Jan 2, 2006 15:04 MST")
		},
		"signed": func(n int) string {
			if n > 0 {
				return fmt.Sprintf("+%d", n)
			}
			return fmt.Sprintf("%d", n)
		},
		"deref": func(b *bool) bool {
			return b != nil && *b
		},
		"paragraphs": func(s string) []string {
			var out []string
			for _, p := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n\n") {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			return out
		},
	}
	reportTemplate = template.Must(template.New("citegame").Funcs(funcMap).ParseFS(templateFS, "templates/*.html"))
}

var typeColors = map[model.HallucinationType]string{
	model.FabricatedCase:      "#7c3aed",
	model.WrongCitation:       "#2563eb",
	model.Mischaracterization: "#d97706",
	model.Misquotation:        "#db2777",
}

// Input is everything a report shows
type Input struct {
	Title       string                        `json:"title"`
	GameCode    string                        `json:"game_code,omitempty"`
	Scoreboard  model.Scoreboard              `json:"scoreboard"`
	Reviews     map[string]*model.ReviewBrief `json:"reviews,omitempty"` // keyed by fabrication team id
	Recap       string                        `json:"recap,omitempty"`
	GeneratedAt time.Time                     `json:"generated_at"`
}

// Builder renders reports
type Builder struct {
	now func() time.Time
}

// NewBuilder creates a builder stamping reports with the current time
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// Build renders the full self-contained document
func (b *Builder) Build(in Input) ([]byte, error) {
	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = b.now()
	}
	if in.Title == "" {
		in.Title = "Citation Game Results"
	}

	data, err := newPageData(in)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := reportTemplate.ExecuteTemplate(&buf, "report", data); err != nil {
		return nil, fmt.Errorf("execute report template: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteJSON writes the report input as indented JSON
func (b *Builder) WriteJSON(w io.Writer, in Input) error {
	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = b.now()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(in); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// ScoreCards renders the score card grid fragment
func ScoreCards(board model.Scoreboard) (string, error) {
	return fragment("scoreCards", scoreCards(board))
}

// TypeStats renders the detection-rate bars fragment
func TypeStats(board model.Scoreboard) (string, error) {
	return fragment("typeStats", typeBars(board))
}

// Details renders the per-team detail tables fragment
func Details(board model.Scoreboard) (string, error) {
	return fragment("details", teamDetails(board))
}

// AnnotatedBrief renders one team's brief with caught and missed markers
func AnnotatedBrief(rb *model.ReviewBrief) (string, error) {
	view, err := annotatedBrief(rb)
	if err != nil {
		return "", err
	}
	return fragment("annotatedBrief", view)
}

// AnnotationPanel renders the detail panel of one citation of a review brief
func AnnotationPanel(rb *model.ReviewBrief, citationID string) (string, error) {
	ann, ok := rb.Annotations[citationID]
	view := annotationView(rb.Brief, citationID, ann)
	view.Altered = ok && ann.Altered()
	return fragment("annotationPanel", view)
}

func fragment(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("execute %s template: %w", name, err)
	}
	return buf.String(), nil
}

type pageData struct {
	Title       string
	GameCode    string
	BriefID     string
	Recap       string
	GeneratedAt time.Time
	Cards       []scoreCard
	Bars        []typeBar
	Teams       []teamDetail
	Briefs      []briefView
}

type scoreCard struct {
	TeamName     string
	Total        int
	Fabrication  int
	Verification int
	Swaps        int
	Flags        int
	Winner       bool
}

type typeBar struct {
	Label  string
	Rate   int
	Caught int
	Total  int
	Color  string
}

type fabRow struct {
	CitationID string
	Label      string
	Short      string
	Caught     bool
	Points     int
}

type verRow struct {
	CitationID string
	IsFake     bool
	Verdict    string
	Class      string
	Points     int
}

type teamDetail struct {
	TeamName     string
	Fabrication  []fabRow
	Verification []verRow
}

type briefView struct {
	FabTeamName string
	VerTeamName string
	Body        template.HTML
	Annotations []annotationDiff
}

type annotationDiff struct {
	CitationID  string
	Display     string
	Label       string
	Short       string
	OptionLabel string
	Original    string
	Replacement string
	Caught      *bool
	Altered     bool
}

func newPageData(in Input) (*pageData, error) {
	data := &pageData{
		Title:       in.Title,
		GameCode:    in.GameCode,
		BriefID:     in.Scoreboard.BriefID,
		Recap:       in.Recap,
		GeneratedAt: in.GeneratedAt,
		Cards:       scoreCards(in.Scoreboard),
		Bars:        typeBars(in.Scoreboard),
		Teams:       teamDetails(in.Scoreboard),
	}

	// Briefs follow the ranking; reviews of teams missing from the board go last by id.
	var order []string
	seen := make(map[string]bool)
	for _, rt := range in.Scoreboard.RankedTeams() {
		if _, ok := in.Reviews[rt.TeamID]; ok {
			order = append(order, rt.TeamID)
			seen[rt.TeamID] = true
		}
	}
	var rest []string
	for id := range in.Reviews {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)

	for _, id := range order {
		rb := in.Reviews[id]
		if rb == nil {
			continue
		}
		view, err := annotatedBrief(rb)
		if err != nil {
			return nil, fmt.Errorf("brief of team %s: %w", id, err)
		}
		data.Briefs = append(data.Briefs, view)
	}
	return data, nil
}

func scoreCards(board model.Scoreboard) []scoreCard {
	ranked := board.RankedTeams()
	cards := make([]scoreCard, 0, len(ranked))
	for i, rt := range ranked {
		s := rt.Score
		cards = append(cards, scoreCard{
			TeamName:     s.TeamName,
			Total:        s.TotalScore,
			Fabrication:  s.FabricationScore,
			Verification: s.VerificationScore,
			Swaps:        s.SwapsMade,
			Flags:        s.FlagsMade,
			Winner:       i == 0,
		})
	}
	return cards
}

func typeBars(board model.Scoreboard) []typeBar {
	var bars []typeBar
	for _, t := range board.OrderedTypeStats() {
		st := board.TypeStats[t]
		color, ok := typeColors[t]
		if !ok {
			color = "#6b7280"
		}
		bars = append(bars, typeBar{
			Label:  t.Label(),
			Rate:   clampPercent(st.DetectionRate),
			Caught: st.Caught,
			Total:  st.Total,
			Color:  color,
		})
	}
	return bars
}

func teamDetails(board model.Scoreboard) []teamDetail {
	var teams []teamDetail
	for _, rt := range board.RankedTeams() {
		td := teamDetail{TeamName: rt.Score.TeamName}
		for _, d := range rt.Score.FabricationDetails {
			td.Fabrication = append(td.Fabrication, fabRow{
				CitationID: d.CitationID,
				Label:      d.HallucinationType.Label(),
				Short:      d.HallucinationType.Short(),
				Caught:     d.Caught,
				Points:     d.Points,
			})
		}
		for _, d := range rt.Score.VerificationDetails {
			td.Verification = append(td.Verification, verRow{
				CitationID: d.CitationID,
				IsFake:     d.IsFake,
				Verdict:    verdictLabel(d.Verdict),
				Class:      verdictClass(d),
				Points:     d.Points,
			})
		}
		teams = append(teams, td)
	}
	return teams
}

func verdictLabel(v model.Verdict) string {
	switch v {
	case model.VerdictFake:
		return "Flagged"
	case model.VerdictLegit:
		return "Legit"
	default:
		return "Skipped"
	}
}

func verdictClass(d model.VerificationDetail) string {
	correct, decided := d.Correct()
	switch {
	case !decided:
		return "skip"
	case correct:
		return "correct"
	default:
		return "incorrect"
	}
}

// ReviewClasses returns the citation classes of a review brief: the type of
// alteration and whether verifiers caught it
func ReviewClasses(rb *model.ReviewBrief) func(model.Citation) []string {
	return func(c model.Citation) []string {
		ann, ok := rb.Annotations[c.CitationID]
		if !ok || !ann.Altered() {
			return nil
		}
		classes := []string{"type-" + ann.HallucinationType.Short()}
		if ann.Caught != nil {
			if *ann.Caught {
				classes = append(classes, "was-caught")
			} else {
				classes = append(classes, "was-missed")
			}
		}
		return classes
	}
}

func annotatedBrief(rb *model.ReviewBrief) (briefView, error) {
	body, err := render.Brief(rb.Brief, render.Options{
		CitationClasses: ReviewClasses(rb),
		DisplayText:     true,
	})
	if err != nil {
		return briefView{}, err
	}

	view := briefView{
		FabTeamName: rb.FabTeamName,
		VerTeamName: rb.VerTeamName,
		// render.Brief escapes all document text
		Body: template.HTML(body),
	}
	for _, id := range rb.Brief.CitationIDs() {
		ann, ok := rb.Annotations[id]
		if !ok || !ann.Altered() {
			continue
		}
		diff := annotationView(rb.Brief, id, ann)
		diff.Altered = true
		view.Annotations = append(view.Annotations, diff)
	}
	return view, nil
}

func annotationView(doc model.Document, citationID string, ann model.ReviewAnnotation) annotationDiff {
	diff := annotationDiff{
		CitationID:  citationID,
		Display:     doc.DisplayText(citationID),
		Label:       ann.HallucinationType.Label(),
		Short:       ann.HallucinationType.Short(),
		OptionLabel: ann.OptionLabel,
		Caught:      ann.Caught,
	}
	switch {
	case ann.ReplacementCitation != "":
		diff.Original = ann.OriginalDisplay
		if diff.Original == "" {
			diff.Original = diff.Display
		}
		diff.Replacement = ann.ReplacementCitation
	case ann.OriginalText != "" && ann.ReplacementText != "":
		diff.Original = ann.OriginalText
		diff.Replacement = ann.ReplacementText
	}
	return diff
}

func clampPercent(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
