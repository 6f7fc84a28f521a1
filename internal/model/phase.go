package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Phase is the server-reported stage of the game
type Phase string

const (
	PhaseLobby        Phase = "lobby"
	PhaseFabrication  Phase = "fabrication"
	PhaseVerification Phase = "verification"
	PhaseReveal       Phase = "reveal"
	PhaseScoreboard   Phase = "scoreboard"
)

// Valid reports whether p is a known phase
func (p Phase) Valid() bool {
	switch p {
	case PhaseLobby, PhaseFabrication, PhaseVerification, PhaseReveal, PhaseScoreboard:
		return true
	}
	return false
}

// PhaseState is one poll result. Deadline is zero when no timer is running.
type PhaseState struct {
	Phase    Phase     `json:"phase"`
	Deadline time.Time `json:"-"`
	TeamID   string    `json:"team_id,omitempty"`
	TeamName string    `json:"team_name,omitempty"`
}

type phaseWire struct {
	Phase    Phase   `json:"phase"`
	TimerEnd *string `json:"timer_end"`
	TeamID   string  `json:"team_id,omitempty"`
	TeamName string  `json:"team_name,omitempty"`
}

// UnmarshalJSON decodes the server's timer_end ISO timestamp into Deadline
func (s *PhaseState) UnmarshalJSON(data []byte) error {
	var w phaseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Phase = w.Phase
	s.TeamID = w.TeamID
	s.TeamName = w.TeamName
	s.Deadline = time.Time{}
	if w.TimerEnd != nil && *w.TimerEnd != "" {
		deadline, err := time.Parse(time.RFC3339Nano, *w.TimerEnd)
		if err != nil {
			return fmt.Errorf("parse timer_end: %w", err)
		}
		s.Deadline = deadline
	}
	return nil
}

// MarshalJSON encodes Deadline back to timer_end
func (s PhaseState) MarshalJSON() ([]byte, error) {
	w := phaseWire{Phase: s.Phase, TeamID: s.TeamID, TeamName: s.TeamName}
	if !s.Deadline.IsZero() {
		end := s.Deadline.UTC().Format(time.RFC3339Nano)
		w.TimerEnd = &end
	}
	return json.Marshal(w)
}

// GamePath returns the page a client belongs on for this game.
// The server routes /game/<id> to the view matching the current phase.
func GamePath(gameID string) string {
	if gameID == "" {
		return "/"
	}
	return "/game/" + gameID
}
