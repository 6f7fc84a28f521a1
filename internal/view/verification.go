package view

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ppiankov/citegame/internal/annotate"
	"github.com/ppiankov/citegame/internal/model"
	"github.com/ppiankov/citegame/internal/overlay"
	"github.com/ppiankov/citegame/internal/render"
)

// VerificationAPI is the server surface the verification view needs
type VerificationAPI interface {
	Brief(ctx context.Context) (*model.BriefPayload, error)
	Flag(ctx context.Context, req model.FlagRequest) error
}

// Verification is the phase in which a team judges another team's citations
type Verification struct {
	session
	api VerificationAPI

	mu    sync.Mutex
	doc   model.Document
	store *annotate.Store
	ids   []string
	index int
}

// NewVerification creates the view; call Load before anything else
func NewVerification(client VerificationAPI, target Target, gameID string) *Verification {
	return &Verification{
		session: session{target: target, gameID: gameID, expected: model.PhaseVerification},
		api:     client,
		store:   annotate.NewStore(nil),
		index:   -1,
	}
}

// Load fetches the brief under review and the verdicts already given
func (v *Verification) Load(ctx context.Context) error {
	payload, err := v.api.Brief(ctx)
	if !v.active() {
		return nil
	}
	if err != nil {
		v.target.SetText(ElemBrief, "Error: "+err.Error())
		return fmt.Errorf("load brief: %w", err)
	}

	store := annotate.NewStore(nil)
	store.Seed(nil, payload.Flags)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.doc = payload.Brief
	v.store = store
	v.ids = payload.Brief.CitationIDs()
	v.index = -1
	return v.renderLocked()
}

// Store exposes the view's annotation state
func (v *Verification) Store() *annotate.Store {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.store
}

// Document returns the brief under review
func (v *Verification) Document() model.Document {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.doc
}

// CitationIDs returns the reviewable citations in reading order, supra repeats folded
func (v *Verification) CitationIDs() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.ids...)
}

// Selected returns the citation in the side panel, or "" when none is
func (v *Verification) Selected() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selectedLocked()
}

func (v *Verification) selectedLocked() string {
	if v.index < 0 || v.index >= len(v.ids) {
		return ""
	}
	return v.ids[v.index]
}

// SelectCitation moves the panel to a citation. Unknown ids are ignored.
func (v *Verification) SelectCitation(citationID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, id := range v.ids {
		if id == citationID {
			v.index = i
			return v.renderLocked()
		}
	}
	return nil
}

// Next moves to the following citation, stopping at the last
func (v *Verification) Next() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.ids) == 0 || v.index >= len(v.ids)-1 {
		return nil
	}
	v.index++
	return v.renderLocked()
}

// Previous moves to the preceding citation, stopping at the first
func (v *Verification) Previous() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.index <= 0 {
		return nil
	}
	v.index--
	return v.renderLocked()
}

// Flag records a verdict. The store changes at once and rolls back if the
// server refuses.
func (v *Verification) Flag(ctx context.Context, citationID string, verdict model.Verdict) error {
	if !v.active() {
		return nil
	}
	v.mu.Lock()
	rollback, err := v.store.Flag(citationID, verdict)
	if err != nil {
		v.mu.Unlock()
		return err
	}
	v.clearError()
	if err := v.renderLocked(); err != nil {
		v.mu.Unlock()
		return err
	}
	v.mu.Unlock()

	err = v.api.Flag(ctx, model.FlagRequest{CitationID: citationID, Verdict: verdict})
	if err == nil || !v.active() {
		return nil
	}

	rollback()
	v.mu.Lock()
	defer v.mu.Unlock()
	v.showError(err)
	if rerr := v.renderLocked(); rerr != nil {
		return rerr
	}
	return err
}

// CountText is the progress line shown above the brief
func (v *Verification) CountText() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.countLocked()
}

func (v *Verification) countLocked() string {
	fake := 0
	for _, f := range v.store.Flags() {
		if f.Verdict == model.VerdictFake {
			fake++
		}
	}
	return fmt.Sprintf("Reviewed: %d/%d | Flagged: %d", v.store.Count(model.Flagged), len(v.ids), fake)
}

func (v *Verification) renderLocked() error {
	selected := v.selectedLocked()
	brief, err := render.Brief(v.doc, render.Options{
		DisplayText: true,
		CitationClasses: func(c model.Citation) []string {
			var classes []string
			ann := v.store.Annotation(c.CitationID)
			if ann.Kind == model.Flagged {
				classes = append(classes, "flagged-"+string(ann.Verdict))
			}
			if c.CitationID == selected {
				classes = append(classes, "selected")
			}
			return classes
		},
	})
	if err != nil {
		return err
	}

	v.target.SetHTML(ElemBrief, brief)
	v.target.SetText(ElemReviewCount, v.countLocked())
	v.target.SetHTML(ElemSidePanel, v.sidePanelLocked(selected))
	return nil
}

func (v *Verification) sidePanelLocked(selected string) string {
	if selected == "" {
		return `<div class="empty-state">Select a citation to review it</div>`
	}

	id := overlay.Escape(selected)
	ann := v.store.Annotation(selected)
	var b strings.Builder
	b.WriteString("<h3>Review Citation</h3>")
	fmt.Fprintf(&b, `<div class="citation-context"><span class="highlight">%s</span></div>`,
		overlay.Escape(v.doc.DisplayText(selected)))
	fmt.Fprintf(&b, `<p class="position">%d of %d</p>`, v.index+1, len(v.ids))

	verdict := "Not reviewed"
	if ann.Kind == model.Flagged {
		verdict = verdictText(ann.Verdict)
	}
	fmt.Fprintf(&b, `<p class="current-verdict">Current verdict: %s</p>`, overlay.Escape(verdict))

	for _, choice := range []model.Verdict{model.VerdictLegit, model.VerdictFake} {
		class := "btn verdict-" + string(choice)
		if ann.Kind == model.Flagged && ann.Verdict == choice {
			class += " active"
		}
		fmt.Fprintf(&b, `<button class="%s" data-action="flag" data-cite-id="%s" data-verdict="%s">%s</button>`,
			class, id, choice, verdictText(choice))
	}
	b.WriteString(`<div class="nav-buttons">`)
	b.WriteString(`<button class="btn btn-ghost" data-action="prev">Previous</button>`)
	b.WriteString(`<button class="btn btn-ghost" data-action="next">Next</button>`)
	b.WriteString("</div>")
	return b.String()
}

func verdictText(v model.Verdict) string {
	switch v {
	case model.VerdictFake:
		return "Hallucinated"
	case model.VerdictLegit:
		return "Legitimate"
	default:
		return string(v)
	}
}
