package view

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/citegame/internal/model"
)

func testScoreboard() *model.Scoreboard {
	return &model.Scoreboard{
		Mode: model.ModeMultiplayer,
		Scores: map[string]model.TeamScore{
			"t1": {
				TeamName: "Red", TotalScore: 10, FabricationScore: 6, VerificationScore: 4, SwapsMade: 1, FlagsMade: 2,
				FabricationDetails: []model.FabricationDetail{{CitationID: "c1", HallucinationType: model.WrongCitation, Caught: true, Points: -2}},
			},
			"t2": {TeamName: "Blue", TotalScore: 5, FabricationScore: 5},
		},
		TypeStats: map[model.HallucinationType]model.TypeStat{
			model.WrongCitation: {Total: 1, Caught: 1, DetectionRate: 100},
		},
	}
}

func testReviewBrief() *model.ReviewBrief {
	caught := true
	return &model.ReviewBrief{
		Brief: testDocument(),
		Annotations: map[string]model.ReviewAnnotation{
			"c1": {
				HallucinationType:   model.WrongCitation,
				OptionLabel:         "Wrong reporter volume",
				Caught:              &caught,
				OriginalDisplay:     "Smith v. Jones, 123 F.3d 456 (9th Cir. 1999)",
				ReplacementCitation: "Smith v. Jones, 321 F.3d 456 (9th Cir. 1999)",
			},
		},
		FabTeamName: "Red",
		VerTeamName: "Blue",
	}
}

func newReviewFixture(t *testing.T) (*Review, *fakeServer, *MemoryTarget) {
	t.Helper()
	server := &fakeServer{
		board:   testScoreboard(),
		reviews: map[string]*model.ReviewBrief{"t1": testReviewBrief()},
	}
	target := NewMemoryTarget(nil)
	r := NewReview(server, target, "g1")
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return r, server, target
}

func TestReviewLoad(t *testing.T) {
	_, _, target := newReviewFixture(t)

	if cards := target.HTML(ElemScores); !strings.Contains(cards, "Red (Winner)") || !strings.Contains(cards, "Blue") {
		t.Errorf("score cards = %s", cards)
	}
	if stats := target.HTML(ElemTypeStats); !strings.Contains(stats, "100% caught (1/1)") {
		t.Errorf("type stats = %s", stats)
	}
	if details := target.HTML(ElemDetails); !strings.Contains(details, "Red | Fabrication Details") {
		t.Errorf("details = %s", details)
	}
}

func TestReviewLoadError(t *testing.T) {
	target := NewMemoryTarget(nil)
	r := NewReview(&fakeServer{}, target, "g1")

	if err := r.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(target.Text(ElemScores), "Error: ") {
		t.Errorf("scores text = %q", target.Text(ElemScores))
	}
}

func TestReviewSelectTeamAndCitation(t *testing.T) {
	r, _, target := newReviewFixture(t)

	// Nothing to show before a team is chosen
	if err := r.SelectCitation("c1"); err != nil {
		t.Fatal(err)
	}
	if target.HTML(ElemAnnotation) != "" {
		t.Errorf("annotation panel rendered without a team")
	}

	if err := r.SelectTeam(context.Background(), "t1"); err != nil {
		t.Fatal(err)
	}
	if got := target.Text(ElemBriefTeamInfo); got != "Fabricated by: Red | Verified by: Blue" {
		t.Errorf("team info = %q", got)
	}
	brief := target.HTML(ElemReviewBrief)
	if !strings.Contains(brief, `class="citation type-wc was-caught"`) {
		t.Errorf("caught citation not marked: %s", brief)
	}
	if !strings.Contains(brief, `<span class="citation" data-cite-id="c2">`) {
		t.Errorf("unaltered citation marked: %s", brief)
	}

	if err := r.SelectCitation("c1"); err != nil {
		t.Fatal(err)
	}
	panel := target.HTML(ElemAnnotation)
	if !strings.Contains(panel, "321 F.3d 456") || !strings.Contains(panel, "Caught by verifiers") {
		t.Errorf("annotation panel = %s", panel)
	}

	if err := r.SelectCitation("c2"); err != nil {
		t.Fatal(err)
	}
	if panel := target.HTML(ElemAnnotation); !strings.Contains(panel, "This citation was not altered.") {
		t.Errorf("unaltered panel = %s", panel)
	}
}

func TestReviewExport(t *testing.T) {
	r, _, _ := newReviewFixture(t)

	var buf bytes.Buffer
	// t2 has no review brief; the report still renders
	if err := r.Export(context.Background(), &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	doc := buf.String()
	if !strings.HasPrefix(doc, "<!DOCTYPE html>") {
		t.Errorf("report does not start with a doctype: %.60s", doc)
	}
	for _, want := range []string{"Red (Winner)", "Fabricated by: Red", "was-caught"} {
		if !strings.Contains(doc, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestReviewExportBeforeLoad(t *testing.T) {
	r := NewReview(&fakeServer{}, NewMemoryTarget(nil), "g1")

	var buf bytes.Buffer
	if err := r.Export(context.Background(), &buf); !errors.Is(err, ErrNoScoreboard) {
		t.Errorf("expected ErrNoScoreboard, got %v", err)
	}
}
