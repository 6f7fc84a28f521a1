package view

import (
	"sort"
	"sync"
)

// Element ids the views write to
const (
	ElemBrief         = "briefText"
	ElemSidePanel     = "sidePanel"
	ElemSwapCount     = "swapCount"
	ElemReviewCount   = "reviewCount"
	ElemTimer         = "timerDisplay"
	ElemTeamBadge     = "teamBadge"
	ElemInlineError   = "inlineError"
	ElemScores        = "scoresGrid"
	ElemTypeStats     = "typeStats"
	ElemDetails       = "detailsSection"
	ElemReviewBrief   = "annotatedBriefText"
	ElemBriefTeamInfo = "briefTeamInfo"
	ElemAnnotation    = "annotationPanel"
)

// Target is a DOM-like surface views render into
type Target interface {
	SetHTML(id, markup string)
	SetText(id, text string)
	ToggleClass(id, class string, on bool)
	Navigate(path string)
}

// MemoryTarget records what views rendered. Safe for concurrent use.
type MemoryTarget struct {
	mu          sync.Mutex
	html        map[string]string
	text        map[string]string
	classes     map[string]map[string]bool
	navigations []string
	onNavigate  func(path string)
}

// NewMemoryTarget creates an empty target. onNavigate, if set, is called for every navigation.
func NewMemoryTarget(onNavigate func(path string)) *MemoryTarget {
	return &MemoryTarget{
		html:       make(map[string]string),
		text:       make(map[string]string),
		classes:    make(map[string]map[string]bool),
		onNavigate: onNavigate,
	}
}

func (m *MemoryTarget) SetHTML(id, markup string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.html[id] = markup
	delete(m.text, id)
}

func (m *MemoryTarget) SetText(id, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text[id] = text
	delete(m.html, id)
}

func (m *MemoryTarget) ToggleClass(id, class string, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.classes[id]
	if !ok {
		set = make(map[string]bool)
		m.classes[id] = set
	}
	if on {
		set[class] = true
	} else {
		delete(set, class)
	}
}

func (m *MemoryTarget) Navigate(path string) {
	m.mu.Lock()
	m.navigations = append(m.navigations, path)
	cb := m.onNavigate
	m.mu.Unlock()
	if cb != nil {
		cb(path)
	}
}

// HTML returns the markup last set on id
func (m *MemoryTarget) HTML(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.html[id]
}

// Text returns the text last set on id
func (m *MemoryTarget) Text(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text[id]
}

// HasClass reports whether id carries class
func (m *MemoryTarget) HasClass(id, class string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.classes[id][class]
}

// Classes returns the classes of id in sorted order
func (m *MemoryTarget) Classes(id string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for c := range m.classes[id] {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Navigations returns every path navigated to
func (m *MemoryTarget) Navigations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.navigations...)
}
