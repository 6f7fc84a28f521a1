// Package overlay paints sets of character ranges over a text as one ordered,
// non-overlapping sequence of plain and annotated segments.
package overlay

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Plain is the Kind of a segment that belongs to no range
const Plain = -1

// ErrInvalidRange is returned for ranges that do not fit the text
var ErrInvalidRange = errors.New("invalid range")

// Range is a half-open span of rune offsets. Key identifies what the range marks
// (a citation id for citation ranges, empty for highlights).
type Range struct {
	Start int
	End   int
	Key   string
}

// Len returns the number of runes covered
func (r Range) Len() int {
	return r.End - r.Start
}

// Intersects reports strict overlap; ranges that only touch do not intersect
func (r Range) Intersects(o Range) bool {
	return r.Start < o.End && r.End > o.Start
}

// RangeSet is one source of annotations
type RangeSet []Range

// Segment is one painted piece of the text. Text is already escaped.
type Segment struct {
	Text  string
	Kind  int    // Plain or the index of the source range set
	Range *Range // nil for plain segments
}

// RangeError describes a malformed range
type RangeError struct {
	Set   int
	Index int
	Range Range
	Len   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid range: set %d item %d [%d,%d) over text of length %d",
		e.Set, e.Index, e.Range.Start, e.Range.End, e.Len)
}

// Unwrap lets errors.Is match ErrInvalidRange
func (e *RangeError) Unwrap() error {
	return ErrInvalidRange
}

// Escape is the HTML escaping used for every emitted segment
func Escape(s string) string {
	return html.EscapeString(s)
}

// Identity leaves text untouched, for plain-text output
func Identity(s string) string {
	return s
}

type tagged struct {
	Range
	priority int
	order    int
}

// Render merges sets over text. Earlier sets take precedence: a range that strictly
// intersects a range of an earlier set is dropped, as is a range that intersects an
// already accepted range of its own set. Every emitted substring goes through escape.
func Render(text string, sets []RangeSet, escape func(string) string) ([]Segment, error) {
	if escape == nil {
		escape = Escape
	}
	runes := []rune(text)
	n := len(runes)

	var flat []tagged
	for si, set := range sets {
		for ri, r := range set {
			if r.Start < 0 || r.End > n || r.Start >= r.End {
				return nil, &RangeError{Set: si, Index: ri, Range: r, Len: n}
			}
			flat = append(flat, tagged{Range: r, priority: si, order: ri})
		}
	}

	sort.SliceStable(flat, func(i, j int) bool {
		a, b := flat[i], flat[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		if a.End != b.End {
			return a.End > b.End
		}
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		return a.order < b.order
	})

	accepted := resolve(flat, len(sets))

	segments := make([]Segment, 0, 2*len(accepted)+1)
	last := 0
	for i := range accepted {
		r := accepted[i]
		if r.Start > last {
			segments = append(segments, Segment{Text: escape(string(runes[last:r.Start])), Kind: Plain})
		}
		rng := r.Range
		segments = append(segments, Segment{
			Text:  escape(string(runes[r.Start:r.End])),
			Kind:  r.priority,
			Range: &rng,
		})
		last = r.End
	}
	if last < n {
		segments = append(segments, Segment{Text: escape(string(runes[last:])), Kind: Plain})
	}

	return segments, nil
}

// resolve accepts ranges set by set in precedence order, so lower sets only ever
// lose against what is already on the canvas. Input must be sorted.
func resolve(sorted []tagged, sets int) []tagged {
	var accepted []tagged
	for p := 0; p < sets; p++ {
		for _, r := range sorted {
			if r.priority != p {
				continue
			}
			clash := false
			for _, a := range accepted {
				if r.Intersects(a.Range) {
					clash = true
					break
				}
			}
			if !clash {
				accepted = append(accepted, r)
			}
		}
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].Start < accepted[j].Start
	})
	return accepted
}

// Join concatenates the text of all segments
func Join(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// FindRegion locates the first occurrence of needle in text and returns it as
// a rune-offset range. Not found and empty needles report false.
func FindRegion(text, needle string) (Range, bool) {
	if needle == "" {
		return Range{}, false
	}
	idx := strings.Index(text, needle)
	if idx < 0 {
		return Range{}, false
	}
	start := utf8.RuneCountInString(text[:idx])
	return Range{Start: start, End: start + utf8.RuneCountInString(needle)}, true
}

// RuneLen returns the length of text in the unit ranges are expressed in
func RuneLen(text string) int {
	return utf8.RuneCountInString(text)
}
