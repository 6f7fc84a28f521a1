package model

// BriefPayload is the response of GET /api/brief; its shape depends on the phase
type BriefPayload struct {
	Brief          Document     `json:"brief"`
	Hallucinations Catalog      `json:"hallucinations,omitempty"` // fabrication only
	Swaps          []SwapRecord `json:"swaps,omitempty"`          // fabrication only
	Flags          []FlagRecord `json:"flags,omitempty"`          // verification only
	Phase          Phase        `json:"phase"`
}

// SwapRequest is the body of POST /api/citation/swap
type SwapRequest struct {
	CitationID        string            `json:"citation_id"`
	HallucinationType HallucinationType `json:"hallucination_type"`
	OptionID          string            `json:"option_id"`
}

// FlagRequest is the body of POST /api/citation/flag
type FlagRequest struct {
	CitationID string  `json:"citation_id"`
	Verdict    Verdict `json:"verdict"`
}

// MutationResponse is the common reply of mutation endpoints
type MutationResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// JoinRequest is the body of POST /api/join
type JoinRequest struct {
	GameCode   string `json:"game_code"`
	PlayerName string `json:"player_name"`
}

// JoinResponse carries the session issued on join
type JoinResponse struct {
	PlayerID     string `json:"player_id"`
	SessionToken string `json:"session_token"`
	GameID       string `json:"game_id"`
	GameCode     string `json:"game_code"`
}

// PlayerInfo is a player as listed in the game status
type PlayerInfo struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// TeamStatus is a team as listed in the game status
type TeamStatus struct {
	TeamID    string       `json:"team_id"`
	TeamName  string       `json:"team_name"`
	Players   []PlayerInfo `json:"players"`
	SwapCount int          `json:"swap_count"`
	FlagCount int          `json:"flag_count"`
}

// GameStatus is the response of GET /api/game/status
type GameStatus struct {
	GameID     string       `json:"game_id"`
	GameCode   string       `json:"game_code"`
	Phase      Phase        `json:"phase"`
	BriefID    string       `json:"brief_id,omitempty"`
	Teams      []TeamStatus `json:"teams"`
	Unassigned []PlayerInfo `json:"unassigned_players,omitempty"`
}

// ReviewAnnotation describes what happened to one citation of a fabricated brief
type ReviewAnnotation struct {
	HallucinationType   HallucinationType `json:"hallucination_type,omitempty"`
	OptionLabel         string            `json:"option_label,omitempty"`
	Caught              *bool             `json:"caught,omitempty"` // nil until verdicts are revealed
	OriginalDisplay     string            `json:"original_display,omitempty"`
	ReplacementCitation string            `json:"replacement_citation,omitempty"`
	OriginalText        string            `json:"original_text,omitempty"`
	ReplacementText     string            `json:"replacement_text,omitempty"`
}

// Altered reports whether the citation was swapped
func (a ReviewAnnotation) Altered() bool {
	return a.HallucinationType != ""
}

// ReviewBrief is the response of GET /api/game/review-brief
type ReviewBrief struct {
	Brief       Document                    `json:"brief"`
	Annotations map[string]ReviewAnnotation `json:"annotations"`
	FabTeamName string                      `json:"fab_team_name"`
	VerTeamName string                      `json:"ver_team_name,omitempty"`
}

// TeamProgress is the response of GET /api/team/progress
type TeamProgress struct {
	SwapCount   int          `json:"swap_count"`
	FlagCount   int          `json:"flag_count"` // verdicts of "fake" only
	ReviewCount int          `json:"review_count"`
	Swaps       []SwapRecord `json:"swaps"`
	Flags       []FlagRecord `json:"flags"`
}
