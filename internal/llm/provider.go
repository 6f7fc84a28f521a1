// Package llm writes the optional recap paragraph of the end-of-game report
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/citegame/internal/model"
)

// ErrCitationLeak is returned when a recap references a citation outside the allowlist
var ErrCitationLeak = errors.New("citation leak")

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Recap writes a short narrative of the game with strict citation references
	Recap(ctx context.Context, req RecapRequest) (*RecapResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// RecapRequest contains the input for a recap
type RecapRequest struct {
	Scoreboard model.Scoreboard

	// Reviews are the review briefs keyed by fabrication team id
	Reviews map[string]*model.ReviewBrief

	// CitationIDs is the STRICT allowlist of ids the recap may reference as [id]
	CitationIDs []string

	// Prompt overrides the default prompt when set
	Prompt string

	Model     string
	MaxTokens int
}

// RecapResponse contains the recap text
type RecapResponse struct {
	Text string

	// CitedIDs are the citation ids the model referenced
	CitedIDs []string

	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama", ""
	Provider string

	Model   string
	APIKey  string
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// StrictEvidence enforces the citation allowlist
	StrictEvidence bool

	MaxTokens int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:        30,
		StrictEvidence: true,
		MaxTokens:      600,
	}
}

// CitationIDs collects the ids of every citation in the review briefs, sorted
func CitationIDs(reviews map[string]*model.ReviewBrief) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, rb := range reviews {
		if rb == nil {
			continue
		}
		for _, id := range rb.Brief.CitationIDs() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// BuildPrompt constructs the default recap prompt
func BuildPrompt(board model.Scoreboard, reviews map[string]*model.ReviewBrief, citationIDs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are writing a short recap of a legal citation game. One team altered citations in a brief, another team tried to catch the alterations.

CRITICAL RULES:
1. You may ONLY reference citations by id in square brackets, and ONLY ids from this list:
%s

2. DO NOT invent cases, reporters or quotations.
3. Report only what the scores and details below show.

Scores:
`, joinIDs(citationIDs))

	for _, rt := range board.RankedTeams() {
		s := rt.Score
		fmt.Fprintf(&b, "- %s: %d total (fabrication %d, verification %d), %d swaps, %d flags\n",
			s.TeamName, s.TotalScore, s.FabricationScore, s.VerificationScore, s.SwapsMade, s.FlagsMade)
	}

	if types := board.OrderedTypeStats(); len(types) > 0 {
		b.WriteString("\nDetection rates:\n")
		for _, t := range types {
			st := board.TypeStats[t]
			fmt.Fprintf(&b, "- %s: %d%% (%d of %d caught)\n", t.Label(), st.DetectionRate, st.Caught, st.Total)
		}
	}

	var teams []string
	for id := range reviews {
		teams = append(teams, id)
	}
	sort.Strings(teams)
	for _, id := range teams {
		rb := reviews[id]
		if rb == nil {
			continue
		}
		fmt.Fprintf(&b, "\nAlterations by %s:\n", rb.FabTeamName)
		for _, cid := range rb.Brief.CitationIDs() {
			ann, ok := rb.Annotations[cid]
			if !ok || !ann.Altered() {
				continue
			}
			outcome := "not yet revealed"
			if ann.Caught != nil {
				outcome = "missed"
				if *ann.Caught {
					outcome = "caught"
				}
			}
			fmt.Fprintf(&b, "- [%s] %s, %s\n", cid, ann.HallucinationType.Label(), outcome)
		}
	}

	b.WriteString("\nWrite 3-4 sentences. Name the winner and the alteration that fooled the verifiers best.")
	return b.String()
}

func joinIDs(ids []string) string {
	if len(ids) == 0 {
		return "(No citations available)"
	}
	var b strings.Builder
	for i, id := range ids {
		if i >= 40 { // Limit to avoid token bloat
			fmt.Fprintf(&b, "\n... and %d more ids", len(ids)-40)
			break
		}
		fmt.Fprintf(&b, "\n- [%s]", id)
	}
	return b.String()
}
