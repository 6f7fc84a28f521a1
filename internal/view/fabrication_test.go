package view

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/citegame/internal/api"
	"github.com/ppiankov/citegame/internal/model"
)

func newFabricationFixture(t *testing.T) (*Fabrication, *fakeServer, *MemoryTarget) {
	t.Helper()
	server := &fakeServer{payload: &model.BriefPayload{
		Brief:          testDocument(),
		Hallucinations: testCatalog(),
		Phase:          model.PhaseFabrication,
	}}
	target := NewMemoryTarget(nil)
	f := NewFabrication(server, target, "g1")
	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return f, server, target
}

func TestFabricationLoad(t *testing.T) {
	_, _, target := newFabricationFixture(t)

	if got := target.Text(ElemSwapCount); got != "0 of 1 altered (target: 6-12)" {
		t.Errorf("swap count = %q", got)
	}
	brief := target.HTML(ElemBrief)
	if !strings.Contains(brief, `data-cite-id="c1"`) || !strings.Contains(brief, `data-cite-id="c2"`) {
		t.Errorf("brief missing citations: %s", brief)
	}
	if !strings.Contains(target.HTML(ElemSidePanel), "empty-state") {
		t.Errorf("side panel should be empty before a selection")
	}
}

func TestFabricationLoadError(t *testing.T) {
	server := &fakeServer{briefErr: errors.New("boom")}
	target := NewMemoryTarget(nil)
	f := NewFabrication(server, target, "g1")

	if err := f.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := target.Text(ElemBrief); got != "Error: boom" {
		t.Errorf("brief text = %q", got)
	}
}

func TestFabricationSeedsExistingSwaps(t *testing.T) {
	server := &fakeServer{payload: &model.BriefPayload{
		Brief:          testDocument(),
		Hallucinations: testCatalog(),
		Swaps:          []model.SwapRecord{{CitationID: "c1", HallucinationType: model.WrongCitation, OptionID: "wc1"}},
	}}
	target := NewMemoryTarget(nil)
	f := NewFabrication(server, target, "g1")
	if err := f.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := target.Text(ElemSwapCount); got != "1 of 1 altered (target: 6-12)" {
		t.Errorf("swap count = %q", got)
	}
	if !strings.Contains(target.HTML(ElemBrief), `class="citation swapped"`) {
		t.Errorf("seeded swap not painted: %s", target.HTML(ElemBrief))
	}
}

func TestFabricationSelectOptionPreviews(t *testing.T) {
	f, _, target := newFabricationFixture(t)

	if err := f.SelectOption("c1", model.Misquotation, "mq1"); err != nil {
		t.Fatal(err)
	}
	brief := target.HTML(ElemBrief)
	if !strings.Contains(brief, `<span class="text-highlight preview">damages must be proven</span>`) {
		t.Errorf("preview highlight missing: %s", brief)
	}
	if !strings.Contains(brief, `class="citation selected"`) {
		t.Errorf("selected citation not marked: %s", brief)
	}
	panel := target.HTML(ElemSidePanel)
	if !strings.Contains(panel, `class="option-item selected" data-cite-id="c1" data-type="misquotation" data-option-id="mq1"`) {
		t.Errorf("staged option not marked in panel: %s", panel)
	}

	// Selecting the citation again drops the preview
	if err := f.SelectCitation("c1"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(target.HTML(ElemBrief), "preview") {
		t.Errorf("preview should be cleared")
	}
}

func TestFabricationConfirmSwap(t *testing.T) {
	f, server, target := newFabricationFixture(t)

	if err := f.SelectOption("c1", model.WrongCitation, "wc1"); err != nil {
		t.Fatal(err)
	}
	if err := f.ConfirmSwap(context.Background(), "c1"); err != nil {
		t.Fatalf("ConfirmSwap failed: %v", err)
	}

	if len(server.swaps) != 1 {
		t.Fatalf("expected 1 swap request, got %d", len(server.swaps))
	}
	want := model.SwapRequest{CitationID: "c1", HallucinationType: model.WrongCitation, OptionID: "wc1"}
	if server.swaps[0] != want {
		t.Errorf("swap request = %+v", server.swaps[0])
	}
	if ann := f.Store().Annotation("c1"); ann.Kind != model.Swapped {
		t.Errorf("annotation kind = %v", ann.Kind)
	}
	if got := target.Text(ElemSwapCount); got != "1 of 1 altered (target: 6-12)" {
		t.Errorf("swap count = %q", got)
	}
	if !strings.Contains(target.HTML(ElemSidePanel), `data-action="undo"`) {
		t.Errorf("undo button missing after swap")
	}
}

func TestFabricationConfirmSwapRejected(t *testing.T) {
	f, server, target := newFabricationFixture(t)
	server.swapErr = rejected("/api/citation/swap", "Swap limit reached")

	if err := f.SelectOption("c1", model.WrongCitation, "wc1"); err != nil {
		t.Fatal(err)
	}
	err := f.ConfirmSwap(context.Background(), "c1")
	if !errors.Is(err, api.ErrMutationRejected) {
		t.Fatalf("expected ErrMutationRejected, got %v", err)
	}

	if ann := f.Store().Annotation("c1"); ann.Kind != model.Unaltered {
		t.Errorf("swap not rolled back: %+v", ann)
	}
	if got := target.Text(ElemInlineError); got != "Swap limit reached" {
		t.Errorf("inline error = %q", got)
	}
	if target.HasClass(ElemInlineError, "hidden") {
		t.Errorf("inline error should be visible")
	}
	if got := target.Text(ElemSwapCount); got != "0 of 1 altered (target: 6-12)" {
		t.Errorf("swap count = %q", got)
	}
	if strings.Contains(target.HTML(ElemBrief), "swapped") {
		t.Errorf("brief still shows the rejected swap")
	}
}

func TestFabricationConfirmWithoutResolvableOption(t *testing.T) {
	f, server, _ := newFabricationFixture(t)

	if err := f.ConfirmSwap(context.Background(), "c1"); err != nil {
		t.Errorf("confirm without selection: %v", err)
	}
	if err := f.SelectOption("c1", model.WrongCitation, "missing"); err != nil {
		t.Fatal(err)
	}
	if err := f.ConfirmSwap(context.Background(), "c1"); err != nil {
		t.Errorf("confirm with unknown option: %v", err)
	}
	if len(server.swaps) != 0 {
		t.Errorf("no request expected, got %d", len(server.swaps))
	}
	if ann := f.Store().Annotation("c1"); ann.Kind != model.Unaltered {
		t.Errorf("store changed: %+v", ann)
	}
}

func TestFabricationUndoSwapRejected(t *testing.T) {
	f, server, _ := newFabricationFixture(t)
	if err := f.SelectOption("c1", model.WrongCitation, "wc1"); err != nil {
		t.Fatal(err)
	}
	if err := f.ConfirmSwap(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}

	server.unswapErr = rejected("/api/citation/unswap", "Phase is over")
	if err := f.UndoSwap(context.Background(), "c1"); !errors.Is(err, api.ErrMutationRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	ann := f.Store().Annotation("c1")
	if ann.Kind != model.Swapped || ann.Swap.OptionID != "wc1" {
		t.Errorf("undo not rolled back: %+v", ann)
	}

	server.unswapErr = nil
	if err := f.UndoSwap(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	if ann := f.Store().Annotation("c1"); ann.Kind != model.Unaltered {
		t.Errorf("undo failed: %+v", ann)
	}
	if len(server.unswaps) != 2 {
		t.Errorf("expected 2 unswap requests, got %d", len(server.unswaps))
	}
}

func TestFabricationLateResponseAfterClose(t *testing.T) {
	f, server, target := newFabricationFixture(t)
	server.gate = make(chan struct{})
	server.entered = make(chan struct{}, 1)
	server.swapErr = rejected("/api/citation/swap", "too late")

	if err := f.SelectOption("c1", model.WrongCitation, "wc1"); err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() {
		done <- f.ConfirmSwap(context.Background(), "c1")
	}()

	<-server.entered
	f.Close()
	close(server.gate)

	if err := <-done; err != nil {
		t.Errorf("abandoned response should not surface an error, got %v", err)
	}
	if ann := f.Store().Annotation("c1"); ann.Kind != model.Swapped {
		t.Errorf("abandoned response must not roll back: %+v", ann)
	}
	if got := target.Text(ElemInlineError); got != "" {
		t.Errorf("abandoned response rendered an error: %q", got)
	}

	// Closed views ignore further actions
	if err := f.UndoSwap(context.Background(), "c1"); err != nil {
		t.Errorf("UndoSwap after Close: %v", err)
	}
	if len(server.unswaps) != 0 {
		t.Errorf("closed view sent a request")
	}
}
