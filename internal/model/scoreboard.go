package model

import (
	"sort"
	"strings"
)

// ScoreMode distinguishes single-team practice from team-vs-team games
type ScoreMode string

const (
	ModeSolitaire   ScoreMode = "solitaire"
	ModeMultiplayer ScoreMode = "multiplayer"
)

// FabricationDetail scores one swap made by a team
type FabricationDetail struct {
	CitationID        string            `json:"citation_id"`
	HallucinationType HallucinationType `json:"hallucination_type"`
	OptionLabel       string            `json:"option_label,omitempty"`
	Caught            bool              `json:"caught"`
	Points            int               `json:"points"`
}

// VerificationDetail scores one verdict made by a team
type VerificationDetail struct {
	CitationID string  `json:"citation_id"`
	Verdict    Verdict `json:"verdict"`
	IsFake     bool    `json:"is_fake"`
	Points     int     `json:"points"`
}

// Correct reports whether the verdict matched reality. Skips are neither.
func (d VerificationDetail) Correct() (correct bool, decided bool) {
	switch d.Verdict {
	case VerdictFake:
		return d.IsFake, true
	case VerdictLegit:
		return !d.IsFake, true
	default:
		return false, false
	}
}

// TeamScore is one team's result
type TeamScore struct {
	TeamName            string               `json:"team_name"`
	TotalScore          int                  `json:"total_score"`
	FabricationScore    int                  `json:"fabrication_score"`
	VerificationScore   int                  `json:"verification_score"`
	SwapsMade           int                  `json:"swaps_made"`
	FlagsMade           int                  `json:"flags_made"`
	FabricationDetails  []FabricationDetail  `json:"fabrication_details"`
	VerificationDetails []VerificationDetail `json:"verification_details"`
}

// TypeStat is the detection rate of one hallucination type across teams
type TypeStat struct {
	Total         int `json:"total"`
	Caught        int `json:"caught"`
	DetectionRate int `json:"detection_rate"` // Percent, 0-100
}

// Scoreboard is the response of GET /api/scoreboard
type Scoreboard struct {
	Mode      ScoreMode                      `json:"mode,omitempty"`
	Scores    map[string]TeamScore           `json:"scores"`
	TypeStats map[HallucinationType]TypeStat `json:"type_stats"`
	BriefID   string                         `json:"brief_id,omitempty"`
}

// RankedTeam pairs a team id with its score
type RankedTeam struct {
	TeamID string
	Score  TeamScore
}

// RankedTeams returns teams by total score descending, then by name
func (s Scoreboard) RankedTeams() []RankedTeam {
	teams := make([]RankedTeam, 0, len(s.Scores))
	for id, score := range s.Scores {
		teams = append(teams, RankedTeam{TeamID: id, Score: score})
	}
	sort.SliceStable(teams, func(i, j int) bool {
		if teams[i].Score.TotalScore != teams[j].Score.TotalScore {
			return teams[i].Score.TotalScore > teams[j].Score.TotalScore
		}
		ni, nj := strings.ToLower(teams[i].Score.TeamName), strings.ToLower(teams[j].Score.TeamName)
		if ni != nj {
			return ni < nj
		}
		return teams[i].TeamID < teams[j].TeamID
	})
	return teams
}

// OrderedTypeStats returns type stats in the canonical type order, unknown types last by name
func (s Scoreboard) OrderedTypeStats() []HallucinationType {
	var types []HallucinationType
	for _, t := range HallucinationTypes {
		if _, ok := s.TypeStats[t]; ok {
			types = append(types, t)
		}
	}
	var extra []HallucinationType
	for t := range s.TypeStats {
		if !t.Valid() {
			extra = append(extra, t)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(types, extra...)
}
