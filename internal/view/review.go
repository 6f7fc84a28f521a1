package view

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ppiankov/citegame/internal/logging"
	"github.com/ppiankov/citegame/internal/model"
	"github.com/ppiankov/citegame/internal/render"
	"github.com/ppiankov/citegame/internal/report"
	"github.com/ppiankov/citegame/internal/worker"
)

// DefaultExportConcurrency is how many review briefs Export fetches at once
const DefaultExportConcurrency = 4

// ErrNoScoreboard is returned when the review view is used before Load
var ErrNoScoreboard = errors.New("scoreboard not loaded")

// ReviewAPI is the server surface the review view needs
type ReviewAPI interface {
	worker.ReviewFetcher
	Scoreboard(ctx context.Context) (*model.Scoreboard, error)
}

// Review is the end-of-game view: scores, detection rates and each team's
// annotated brief
type Review struct {
	session
	api ReviewAPI

	// Concurrency bounds review brief fetches during Export
	Concurrency int

	mu       sync.Mutex
	board    *model.Scoreboard
	teamID   string
	brief    *model.ReviewBrief
	selected string
}

// NewReview creates the view; call Load before anything else
func NewReview(client ReviewAPI, target Target, gameID string) *Review {
	return &Review{
		session:     session{target: target, gameID: gameID, expected: model.PhaseReveal},
		api:         client,
		Concurrency: DefaultExportConcurrency,
	}
}

// Load fetches the scoreboard and renders cards, detection rates and details
func (r *Review) Load(ctx context.Context) error {
	board, err := r.api.Scoreboard(ctx)
	if !r.active() {
		return nil
	}
	if err != nil {
		r.target.SetText(ElemScores, "Error: "+err.Error())
		return fmt.Errorf("load scoreboard: %w", err)
	}

	cards, err := report.ScoreCards(*board)
	if err != nil {
		return err
	}
	stats, err := report.TypeStats(*board)
	if err != nil {
		return err
	}
	details, err := report.Details(*board)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.board = board
	r.mu.Unlock()

	r.target.SetHTML(ElemScores, cards)
	r.target.SetHTML(ElemTypeStats, stats)
	r.target.SetHTML(ElemDetails, details)
	return nil
}

// Scoreboard returns the loaded scoreboard, or nil before Load
func (r *Review) Scoreboard() *model.Scoreboard {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.board
}

// SelectTeam shows the brief a fabrication team produced, marked with what
// the verifiers caught and missed
func (r *Review) SelectTeam(ctx context.Context, teamID string) error {
	rb, err := r.api.ReviewBrief(ctx, teamID)
	if !r.active() {
		return nil
	}
	if err != nil {
		r.target.SetText(ElemReviewBrief, "Error: "+err.Error())
		return fmt.Errorf("load review brief: %w", err)
	}

	body, err := render.Brief(rb.Brief, render.Options{
		CitationClasses: report.ReviewClasses(rb),
		DisplayText:     true,
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.teamID = teamID
	r.brief = rb
	r.selected = ""
	r.mu.Unlock()

	info := "Fabricated by: " + rb.FabTeamName
	if rb.VerTeamName != "" {
		info += " | Verified by: " + rb.VerTeamName
	}
	r.target.SetHTML(ElemReviewBrief, body)
	r.target.SetText(ElemBriefTeamInfo, info)
	r.target.SetHTML(ElemAnnotation, `<div class="empty-state">Select a citation to see what changed</div>`)
	return nil
}

// SelectCitation shows the original and altered text of one citation
func (r *Review) SelectCitation(citationID string) error {
	r.mu.Lock()
	rb := r.brief
	if rb == nil {
		r.mu.Unlock()
		return nil
	}
	r.selected = citationID
	r.mu.Unlock()

	panel, err := report.AnnotationPanel(rb, citationID)
	if err != nil {
		return err
	}
	r.target.SetHTML(ElemAnnotation, panel)
	return nil
}

// ReportInput gathers the scoreboard and every team's review brief. Teams
// whose brief cannot be fetched are left out of the report.
func (r *Review) ReportInput(ctx context.Context) (report.Input, error) {
	board := r.Scoreboard()
	if board == nil {
		return report.Input{}, ErrNoScoreboard
	}

	var ids []string
	for _, team := range board.RankedTeams() {
		ids = append(ids, team.TeamID)
	}
	results := worker.NewReviewBatch(r.api, r.Concurrency).Fetch(ctx, ids)
	reviews, err := worker.Briefs(results)
	if err != nil {
		logging.Warn("some review briefs are missing from the report", "err", err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return report.Input{}, ctxErr
	}

	return report.Input{Scoreboard: *board, Reviews: reviews}, nil
}

// Export writes the standalone HTML report
func (r *Review) Export(ctx context.Context, w io.Writer) error {
	in, err := r.ReportInput(ctx)
	if err != nil {
		return err
	}
	doc, err := report.NewBuilder().Build(in)
	if err != nil {
		return err
	}
	if _, err := w.Write(doc); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
