// Package annotate holds the per-view annotation state of a brief: which
// citations are swapped or flagged, plus the single preview highlight.
package annotate

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ppiankov/citegame/internal/model"
	"github.com/ppiankov/citegame/internal/overlay"
)

var (
	// ErrUnknownOption is returned when a swap names an option missing from the catalog
	ErrUnknownOption = errors.New("unknown option")
	// ErrInvalidVerdict is returned for verdicts other than legit/fake
	ErrInvalidVerdict = errors.New("invalid verdict")
)

// PreviewKey is the range key of the preview highlight
const PreviewKey = "preview"

// Rollback undoes one optimistic mutation. It is a no-op if the citation
// was written again after the mutation it belongs to.
type Rollback func()

func noRollback() {}

// Entry is one annotated citation in a Snapshot
type Entry struct {
	CitationID string
	Annotation model.Annotation
}

// Store is the annotation state of one view session
type Store struct {
	mu          sync.Mutex
	catalog     model.Catalog
	annotations map[string]model.Annotation
	versions    map[string]uint64
	clock       uint64
	preview     *previewState
}

type previewState struct {
	citationID string
	option     model.Option
}

// NewStore creates an empty store backed by the server's option catalog
func NewStore(catalog model.Catalog) *Store {
	if catalog == nil {
		catalog = model.Catalog{}
	}
	return &Store{
		catalog:     catalog,
		annotations: make(map[string]model.Annotation),
		versions:    make(map[string]uint64),
	}
}

// Options returns the catalog entry for a citation
func (s *Store) Options(citationID string) (model.CitationOptions, bool) {
	opts, ok := s.catalog[citationID]
	return opts, ok
}

// Seed loads state already committed on the server. Swaps whose option is no
// longer in the catalog are kept with the type and option id only.
func (s *Store) Seed(swaps []model.SwapRecord, flags []model.FlagRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range swaps {
		detail := &model.SwapDetail{Type: rec.HallucinationType, OptionID: rec.OptionID}
		if opt, ok := s.catalog.Lookup(rec.CitationID, rec.HallucinationType, rec.OptionID); ok {
			detail = swapDetail(rec.HallucinationType, opt)
		}
		s.write(rec.CitationID, model.Annotation{Kind: model.Swapped, Swap: detail})
	}
	for _, rec := range flags {
		if !rec.Verdict.Valid() {
			continue
		}
		s.write(rec.CitationID, model.Annotation{Kind: model.Flagged, Verdict: rec.Verdict})
	}
}

// Swap marks a citation as swapped with the given option, replacing any prior swap
func (s *Store) Swap(citationID string, htype model.HallucinationType, optionID string) (Rollback, error) {
	opt, ok := s.catalog.Lookup(citationID, htype, optionID)
	if !ok {
		return noRollback, fmt.Errorf("%w: %s/%s/%s", ErrUnknownOption, citationID, htype, optionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(citationID, model.Annotation{Kind: model.Swapped, Swap: swapDetail(htype, opt)}), nil
}

// Unswap returns a citation to unaltered. Unswapping an unaltered citation does nothing.
func (s *Store) Unswap(citationID string) Rollback {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.annotations[citationID]; !ok {
		return noRollback
	}
	return s.mutate(citationID, model.Annotation{Kind: model.Unaltered})
}

// Flag records a verdict for a citation, overwriting any earlier verdict
func (s *Store) Flag(citationID string, verdict model.Verdict) (Rollback, error) {
	if !verdict.Valid() {
		return noRollback, fmt.Errorf("%w: %q", ErrInvalidVerdict, verdict)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(citationID, model.Annotation{Kind: model.Flagged, Verdict: verdict}), nil
}

// Preview sets the single preview highlight to a candidate option.
// Options without original text preview nothing in the text.
func (s *Store) Preview(citationID string, htype model.HallucinationType, optionID string) error {
	opt, ok := s.catalog.Lookup(citationID, htype, optionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		s.preview = nil
		return fmt.Errorf("%w: %s/%s/%s", ErrUnknownOption, citationID, htype, optionID)
	}
	s.preview = &previewState{citationID: citationID, option: opt}
	return nil
}

// ClearPreview removes the preview highlight
func (s *Store) ClearPreview() {
	s.mu.Lock()
	s.preview = nil
	s.mu.Unlock()
}

// Annotation returns the current state of a citation
func (s *Store) Annotation(citationID string) model.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.annotations[citationID]
}

// Count returns how many citations are in the given state. Unaltered is not counted.
func (s *Store) Count(kind model.AnnotationKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, a := range s.annotations {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Swaps returns the confirmed swaps ordered by citation id
func (s *Store) Swaps() []model.SwapRecord {
	var out []model.SwapRecord
	for _, e := range s.Snapshot() {
		if e.Annotation.Kind != model.Swapped {
			continue
		}
		out = append(out, model.SwapRecord{
			CitationID:        e.CitationID,
			HallucinationType: e.Annotation.Swap.Type,
			OptionID:          e.Annotation.Swap.OptionID,
		})
	}
	return out
}

// Flags returns the recorded verdicts ordered by citation id
func (s *Store) Flags() []model.FlagRecord {
	var out []model.FlagRecord
	for _, e := range s.Snapshot() {
		if e.Annotation.Kind == model.Flagged {
			out = append(out, model.FlagRecord{CitationID: e.CitationID, Verdict: e.Annotation.Verdict})
		}
	}
	return out
}

// Snapshot returns every non-unaltered citation ordered by id
func (s *Store) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.annotations))
	for id, a := range s.annotations {
		if a.Swap != nil {
			detail := *a.Swap
			a.Swap = &detail
		}
		out = append(out, Entry{CitationID: id, Annotation: a})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CitationID < out[j].CitationID })
	return out
}

// HighlightRegions locates the preview and every confirmed swap's original text
// inside one paragraph. The preview comes first, then swaps by citation id.
// Text that does not occur in the paragraph yields no region.
func (s *Store) HighlightRegions(text string) []overlay.Range {
	s.mu.Lock()
	var previewText string
	if s.preview != nil {
		previewText = s.preview.option.OriginalText
	}
	s.mu.Unlock()

	var regions []overlay.Range
	if r, ok := overlay.FindRegion(text, previewText); ok {
		r.Key = PreviewKey
		regions = append(regions, r)
	}
	for _, e := range s.Snapshot() {
		if e.Annotation.Kind != model.Swapped {
			continue
		}
		if r, ok := overlay.FindRegion(text, e.Annotation.Swap.OriginalText); ok {
			r.Key = e.CitationID
			regions = append(regions, r)
		}
	}
	return regions
}

// mutate applies a write and returns its rollback. Caller holds the lock.
func (s *Store) mutate(citationID string, next model.Annotation) Rollback {
	prev, had := s.annotations[citationID]
	version := s.write(citationID, next)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.versions[citationID] != version {
			return
		}
		if had {
			s.write(citationID, prev)
		} else {
			s.write(citationID, model.Annotation{Kind: model.Unaltered})
		}
	}
}

func (s *Store) write(citationID string, a model.Annotation) uint64 {
	s.clock++
	s.versions[citationID] = s.clock
	if a.Kind == model.Unaltered {
		delete(s.annotations, citationID)
	} else {
		s.annotations[citationID] = a
	}
	return s.clock
}

func swapDetail(htype model.HallucinationType, opt model.Option) *model.SwapDetail {
	return &model.SwapDetail{
		Type:               htype,
		OptionID:           opt.ID,
		OriginalText:       opt.OriginalText,
		ReplacementText:    opt.ReplacementText,
		ReplacementDisplay: opt.Preview(),
	}
}
