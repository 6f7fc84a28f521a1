package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ppiankov/citegame/internal/api"
	"github.com/ppiankov/citegame/internal/model"
)

func testDocument() model.Document {
	return model.Document{
		ID:    "brief-1",
		Title: "Motion for Summary Judgment",
		Paragraphs: []model.Paragraph{
			{
				ID:   "p1",
				Type: model.ParagraphBody,
				Text: "See Smith v. Jones, 123 F.3d 456 (9th Cir. 1999), holding that damages must be proven.",
				Citations: []model.Citation{
					{CitationID: "c1", Start: 4, End: 48, DisplayText: "Smith v. Jones, 123 F.3d 456 (9th Cir. 1999)"},
				},
			},
			{
				ID:   "p2",
				Type: model.ParagraphBody,
				Text: "The rule is settled. Smith, 123 F.3d at 458. See also Doe v. Roe, 9 U.S. 1 (1800).",
				Citations: []model.Citation{
					{CitationID: "c2", Start: 54, End: 81, DisplayText: "Doe v. Roe, 9 U.S. 1 (1800)"},
					{CitationID: "c1", Start: 21, End: 43, DisplayText: "Smith, 123 F.3d at 458", Supra: true},
				},
			},
		},
	}
}

func testCatalog() model.Catalog {
	return model.Catalog{
		"c1": {
			OriginalDisplay: "Smith v. Jones, 123 F.3d 456 (9th Cir. 1999)",
			CaseName:        "Smith v. Jones",
			Options: map[model.HallucinationType][]model.Option{
				model.WrongCitation: {
					{ID: "wc1", Label: "Wrong reporter volume", Difficulty: "medium", ReplacementCitation: "Smith v. Jones, 321 F.3d 456 (9th Cir. 1999)"},
				},
				model.Misquotation: {
					{ID: "mq1", Label: "Stronger standard", Difficulty: "hard", OriginalText: "damages must be proven", ReplacementText: "damages must be proven beyond doubt"},
				},
			},
		},
	}
}

func rejected(endpoint, message string) error {
	return &api.MutationError{Endpoint: endpoint, Status: 400, Message: message}
}

// fakeServer implements every view API. A non-nil gate blocks mutations until
// it is closed; entered is signalled as each mutation starts.
type fakeServer struct {
	mu       sync.Mutex
	payload  *model.BriefPayload
	briefErr error

	swapErr   error
	unswapErr error
	flagErr   error
	gate      chan struct{}
	entered   chan struct{}

	swaps   []model.SwapRequest
	unswaps []string
	flags   []model.FlagRequest

	board     *model.Scoreboard
	reviews   map[string]*model.ReviewBrief
	reviewErr map[string]error

	phases []model.PhaseState
	polls  int
}

func (f *fakeServer) Brief(ctx context.Context) (*model.BriefPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.briefErr != nil {
		return nil, f.briefErr
	}
	return f.payload, nil
}

func (f *fakeServer) wait(ctx context.Context) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate == nil {
		return nil
	}
	select {
	case <-f.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeServer) Swap(ctx context.Context, req model.SwapRequest) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swaps = append(f.swaps, req)
	return f.swapErr
}

func (f *fakeServer) Unswap(ctx context.Context, citationID string) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unswaps = append(f.unswaps, citationID)
	return f.unswapErr
}

func (f *fakeServer) Flag(ctx context.Context, req model.FlagRequest) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags = append(f.flags, req)
	return f.flagErr
}

func (f *fakeServer) Scoreboard(ctx context.Context) (*model.Scoreboard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.board == nil {
		return nil, errors.New("scoreboard unavailable")
	}
	return f.board, nil
}

func (f *fakeServer) ReviewBrief(ctx context.Context, fabTeamID string) (*model.ReviewBrief, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.reviewErr[fabTeamID]; err != nil {
		return nil, err
	}
	rb, ok := f.reviews[fabTeamID]
	if !ok {
		return nil, errors.New("no review brief for " + fabTeamID)
	}
	return rb, nil
}

// Phase replays phases in order and repeats the last one
func (f *fakeServer) Phase(ctx context.Context) (model.PhaseState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.phases) == 0 {
		return model.PhaseState{}, errors.New("no phase")
	}
	i := f.polls
	if i >= len(f.phases) {
		i = len(f.phases) - 1
	}
	f.polls++
	return f.phases[i], nil
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
