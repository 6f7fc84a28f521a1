package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/citegame/internal/model"
)

func boolPtr(b bool) *bool { return &b }

func testInput() Input {
	board := model.Scoreboard{
		Mode:    model.ModeMultiplayer,
		BriefID: "brief-1",
		Scores: map[string]model.TeamScore{
			"t1": {
				TeamName: "Blue", TotalScore: 7, FabricationScore: 4, VerificationScore: 3, SwapsMade: 2, FlagsMade: 1,
				FabricationDetails: []model.FabricationDetail{
					{CitationID: "c1", HallucinationType: model.Misquotation, Caught: false, Points: 3},
					{CitationID: "c2", HallucinationType: model.WrongCitation, Caught: true, Points: -1},
				},
				VerificationDetails: []model.VerificationDetail{
					{CitationID: "c1", Verdict: model.VerdictFake, IsFake: true, Points: 2},
					{CitationID: "c3", Verdict: model.VerdictFake, IsFake: false, Points: -1},
					{CitationID: "c4", Verdict: model.VerdictSkip, IsFake: true, Points: 0},
				},
			},
			"t2": {TeamName: "Red <script>", TotalScore: 4},
		},
		TypeStats: map[model.HallucinationType]model.TypeStat{
			model.WrongCitation: {Total: 1, Caught: 1, DetectionRate: 100},
			model.Misquotation:  {Total: 1, Caught: 0, DetectionRate: 0},
		},
	}
	review := &model.ReviewBrief{
		FabTeamName: "Blue",
		VerTeamName: "Red <script>",
		Brief: model.Document{Paragraphs: []model.Paragraph{{
			ID:   "p1",
			Type: model.ParagraphBody,
			Text: "See Smith v. Jones, 123 F.3d 456 (2020).",
			Citations: []model.Citation{
				{CitationID: "c1", Start: 4, End: 40, DisplayText: "Smith v. Jones, 124 F.3d 456 (2020)."},
			},
		}}},
		Annotations: map[string]model.ReviewAnnotation{
			"c1": {
				HallucinationType: model.Misquotation,
				OptionLabel:       "Shift the pin cite",
				Caught:            boolPtr(false),
				OriginalText:      "123 F.3d 456",
				ReplacementText:   "124 F.3d 456",
			},
		},
	}
	return Input{
		Title:       "Moot Court & Friends",
		GameCode:    "ABCD",
		Scoreboard:  board,
		Reviews:     map[string]*model.ReviewBrief{"t1": review},
		Recap:       "Blue hid [c1] well.\n\nRed caught [c2].",
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBuild_SelfContainedDocument(t *testing.T) {
	out, err := NewBuilder().Build(testInput())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	html := string(out)

	for _, want := range []string{
		"<!DOCTYPE html>",
		"<style>",
		"Moot Court &amp; Friends",
		"Blue (Winner)",
		"Red &lt;script&gt;",
		"100% caught (1/1)",
		"Undetected",
		`<td class="skip">Skipped</td>`,
		`<td class="incorrect">Flagged</td>`,
		"+3",
		"-1",
		`class="citation type-mq was-missed"`,
		"<del>123 F.3d 456</del>",
		"<ins>124 F.3d 456</ins>",
		"Missed by verifiers",
		"<p>Blue hid [c1] well.</p>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected report to contain %q", want)
		}
	}

	if strings.Contains(html, "<script>") {
		t.Error("unescaped team name in report")
	}
	for _, external := range []string{"<link", "<script", "src=", "@import"} {
		if strings.Contains(html, external) {
			t.Errorf("report references external resource: %q", external)
		}
	}
	wc, mq := strings.Index(html, "Wrong Citation</span><span>"), strings.Index(html, "Misquotation</span><span>")
	if wc < 0 || mq < 0 || wc > mq {
		t.Error("expected type bars in canonical order")
	}
}

func TestBuild_Deterministic(t *testing.T) {
	b := NewBuilder()
	first, err := b.Build(testInput())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	second, _ := b.Build(testInput())
	if !bytes.Equal(first, second) {
		t.Error("expected identical output for identical input")
	}
}

func TestBuild_InvalidBriefFails(t *testing.T) {
	in := testInput()
	in.Reviews["t1"].Brief.Paragraphs[0].Citations[0].End = 500
	if _, err := NewBuilder().Build(in); err == nil {
		t.Error("expected invalid citation range to fail the build")
	}
}

func TestAnnotationPanel(t *testing.T) {
	rb := testInput().Reviews["t1"]

	html, err := AnnotationPanel(rb, "c1")
	if err != nil {
		t.Fatalf("AnnotationPanel failed: %v", err)
	}
	if !strings.Contains(html, "Misquotation") || !strings.Contains(html, "Shift the pin cite") {
		t.Errorf("unexpected panel %s", html)
	}

	html, err = AnnotationPanel(rb, "c9")
	if err != nil {
		t.Fatalf("AnnotationPanel failed: %v", err)
	}
	if !strings.Contains(html, "This citation was not altered.") {
		t.Errorf("expected unaltered panel, got %s", html)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := NewBuilder().WriteJSON(&buf, testInput()); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	var decoded struct {
		Title      string `json:"title"`
		Scoreboard struct {
			BriefID string `json:"brief_id"`
		} `json:"scoreboard"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Title != "Moot Court & Friends" || decoded.Scoreboard.BriefID != "brief-1" {
		t.Errorf("unexpected JSON %+v", decoded)
	}
}
