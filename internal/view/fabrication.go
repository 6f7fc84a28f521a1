package view

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ppiankov/citegame/internal/annotate"
	"github.com/ppiankov/citegame/internal/logging"
	"github.com/ppiankov/citegame/internal/model"
	"github.com/ppiankov/citegame/internal/overlay"
	"github.com/ppiankov/citegame/internal/render"
)

// SwapTarget is the range of swaps a fabrication team is asked to make
const SwapTarget = "6-12"

// FabricationAPI is the server surface the fabrication view needs
type FabricationAPI interface {
	Brief(ctx context.Context) (*model.BriefPayload, error)
	Swap(ctx context.Context, req model.SwapRequest) error
	Unswap(ctx context.Context, citationID string) error
}

type pendingOption struct {
	citationID string
	htype      model.HallucinationType
	optionID   string
}

// Fabrication is the phase in which a team swaps citations for hallucinations
type Fabrication struct {
	session
	api FabricationAPI

	mu       sync.Mutex
	doc      model.Document
	store    *annotate.Store
	selected string
	pending  *pendingOption
}

// NewFabrication creates the view; call Load before anything else
func NewFabrication(client FabricationAPI, target Target, gameID string) *Fabrication {
	return &Fabrication{
		session: session{target: target, gameID: gameID, expected: model.PhaseFabrication},
		api:     client,
		store:   annotate.NewStore(nil),
	}
}

// Load fetches the brief, the option catalog and the team's swaps, then renders
func (f *Fabrication) Load(ctx context.Context) error {
	payload, err := f.api.Brief(ctx)
	if !f.active() {
		return nil
	}
	if err != nil {
		f.target.SetText(ElemBrief, "Error: "+err.Error())
		return fmt.Errorf("load brief: %w", err)
	}

	store := annotate.NewStore(payload.Hallucinations)
	store.Seed(payload.Swaps, nil)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.doc = payload.Brief
	f.store = store
	f.selected = ""
	f.pending = nil
	return f.renderLocked()
}

// Store exposes the view's annotation state
func (f *Fabrication) Store() *annotate.Store {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store
}

// Document returns the loaded brief
func (f *Fabrication) Document() model.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc
}

// SelectCitation opens the option panel for a citation and drops any preview
func (f *Fabrication) SelectCitation(citationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = citationID
	f.pending = nil
	f.store.ClearPreview()
	return f.renderLocked()
}

// SelectOption stages an option for confirmation and previews it in the brief
func (f *Fabrication) SelectOption(citationID string, htype model.HallucinationType, optionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = citationID
	f.pending = &pendingOption{citationID: citationID, htype: htype, optionID: optionID}
	if err := f.store.Preview(citationID, htype, optionID); err != nil {
		logging.Debug("preview unavailable", "citation", citationID, "err", err)
	}
	return f.renderLocked()
}

// ConfirmSwap commits the staged option of a citation. The store changes at
// once; a refusal rolls it back and shows the server's message. Without a
// resolvable staged option this does nothing.
func (f *Fabrication) ConfirmSwap(ctx context.Context, citationID string) error {
	if !f.active() {
		return nil
	}
	f.mu.Lock()
	p := f.pending
	if p == nil || p.citationID != citationID {
		f.mu.Unlock()
		return nil
	}
	rollback, err := f.store.Swap(p.citationID, p.htype, p.optionID)
	if errors.Is(err, annotate.ErrUnknownOption) {
		f.mu.Unlock()
		logging.Debug("confirm ignored", "citation", citationID, "err", err)
		return nil
	}
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.pending = nil
	f.store.ClearPreview()
	f.clearError()
	if err := f.renderLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()

	req := model.SwapRequest{CitationID: p.citationID, HallucinationType: p.htype, OptionID: p.optionID}
	return f.settle(f.api.Swap(ctx, req), rollback)
}

// UndoSwap returns a citation to its original text
func (f *Fabrication) UndoSwap(ctx context.Context, citationID string) error {
	if !f.active() {
		return nil
	}
	f.mu.Lock()
	rollback := f.store.Unswap(citationID)
	f.pending = nil
	f.store.ClearPreview()
	f.clearError()
	if err := f.renderLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()

	return f.settle(f.api.Unswap(ctx, citationID), rollback)
}

// settle applies the outcome of a mutation request, unless the view is gone
func (f *Fabrication) settle(err error, rollback annotate.Rollback) error {
	if !f.active() {
		return nil
	}
	if err == nil {
		return nil
	}

	rollback()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.showError(err)
	if rerr := f.renderLocked(); rerr != nil {
		return rerr
	}
	return err
}

// SwapCountText is the progress line shown above the brief
func (f *Fabrication) SwapCountText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.swapCountLocked()
}

func (f *Fabrication) swapCountLocked() string {
	total := 0
	for _, id := range f.doc.CitationIDs() {
		if _, ok := f.store.Options(id); ok {
			total++
		}
	}
	return fmt.Sprintf("%d of %d altered (target: %s)", f.store.Count(model.Swapped), total, SwapTarget)
}

func (f *Fabrication) renderLocked() error {
	brief, err := render.Brief(f.doc, render.Options{
		Highlights: f.store.HighlightRegions,
		CitationClasses: func(c model.Citation) []string {
			var classes []string
			if f.store.Annotation(c.CitationID).Kind == model.Swapped {
				classes = append(classes, "swapped")
			}
			if c.CitationID == f.selected {
				classes = append(classes, "selected")
			}
			return classes
		},
		HighlightClasses: func(r overlay.Range) []string {
			if r.Key == annotate.PreviewKey {
				return []string{"preview"}
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	f.target.SetHTML(ElemBrief, brief)
	f.target.SetText(ElemSwapCount, f.swapCountLocked())
	f.target.SetHTML(ElemSidePanel, f.sidePanelLocked())
	return nil
}

func (f *Fabrication) sidePanelLocked() string {
	if f.selected == "" {
		return `<div class="empty-state">Select a citation to swap it</div>`
	}
	opts, ok := f.store.Options(f.selected)
	if !ok {
		return `<div class="empty-state">No options available for this citation</div>`
	}

	current := f.store.Annotation(f.selected)
	activeType := model.HallucinationType("")
	activeOption := ""
	if current.Kind == model.Swapped {
		activeType, activeOption = current.Swap.Type, current.Swap.OptionID
	}
	if f.pending != nil && f.pending.citationID == f.selected {
		activeType, activeOption = f.pending.htype, f.pending.optionID
	}

	id := overlay.Escape(f.selected)
	var b strings.Builder
	b.WriteString("<h3>Swap Citation</h3>")
	fmt.Fprintf(&b, `<div class="citation-context"><span class="highlight">%s</span></div>`, overlay.Escape(opts.OriginalDisplay))
	if opts.CaseName != "" {
		fmt.Fprintf(&b, `<p class="case-name">%s</p>`, overlay.Escape(opts.CaseName))
	}

	for _, htype := range typesOf(opts) {
		options := opts.Options[htype]
		fmt.Fprintf(&b, `<div class="option-group" data-type="%s"><h4>%s (%d)</h4>`,
			overlay.Escape(string(htype)), overlay.Escape(htype.Label()), len(options))
		for _, opt := range options {
			class := "option-item"
			if htype == activeType && opt.ID == activeOption {
				class += " selected"
			}
			difficulty := "difficulty-medium"
			if opt.Difficulty == "hard" {
				difficulty = "difficulty-hard"
			}
			fmt.Fprintf(&b, `<div class="%s" data-cite-id="%s" data-type="%s" data-option-id="%s"><div class="option-label">%s`,
				class, id, overlay.Escape(string(htype)), overlay.Escape(opt.ID), overlay.Escape(opt.Label))
			if opt.Difficulty != "" {
				fmt.Fprintf(&b, ` <span class="difficulty %s">%s</span>`, difficulty, overlay.Escape(opt.Difficulty))
			}
			if preview := opt.Preview(); preview != "" {
				fmt.Fprintf(&b, `<div class="option-preview">%s</div>`, overlay.Escape(preview))
			}
			b.WriteString("</div></div>")
		}
		b.WriteString("</div>")
	}

	fmt.Fprintf(&b, `<button class="btn btn-primary" data-action="confirm" data-cite-id="%s">Confirm Swap</button>`, id)
	if current.Kind == model.Swapped {
		fmt.Fprintf(&b, `<button class="btn btn-ghost" data-action="undo" data-cite-id="%s">Undo Swap</button>`, id)
	}
	return b.String()
}

// typesOf lists the types that have options, in canonical order
func typesOf(opts model.CitationOptions) []model.HallucinationType {
	var types []model.HallucinationType
	for _, t := range model.HallucinationTypes {
		if len(opts.Options[t]) > 0 {
			types = append(types, t)
		}
	}
	return types
}
