// Package view holds the per-phase controllers of the game client. Each view
// owns its annotation state, renders into a Target and follows the server's
// phase until it is told to move on.
package view

import (
	"context"
	"errors"
	"sync"

	"github.com/ppiankov/citegame/internal/api"
	"github.com/ppiankov/citegame/internal/logging"
	"github.com/ppiankov/citegame/internal/model"
	"github.com/ppiankov/citegame/internal/phasesync"
)

// session is the lifecycle every view shares: phase sync, the clock and
// teardown. Once torn down, late responses must not touch the view.
type session struct {
	target   Target
	gameID   string
	expected model.Phase

	mu        sync.Mutex
	done      bool
	navigated bool
	phase     *phasesync.Sync
}

// active reports whether the view may still change state
func (s *session) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.done
}

// StartSync follows the server phase: team badge and clock stay live, and the
// first phase change navigates once to the game page.
func (s *session) StartSync(ctx context.Context, fetcher phasesync.Fetcher, opts phasesync.Options) error {
	opts.OnClock = func(text string, warning bool) {
		if !s.active() {
			return
		}
		s.target.SetText(ElemTimer, text)
		s.target.ToggleClass(ElemTimer, "warning", warning)
	}
	ps := phasesync.New(fetcher, opts)

	s.mu.Lock()
	if s.done || s.phase != nil {
		s.mu.Unlock()
		return phasesync.ErrAlreadyStarted
	}
	s.phase = ps
	s.mu.Unlock()

	// Prime deadline and badge before the first tick; failures wait for polling.
	if state, err := fetcher.Phase(ctx); err == nil {
		ps.SetDeadline(state.Deadline)
		s.onTick(state)
	} else {
		logging.Debug("initial phase fetch failed", "err", err)
	}

	return ps.Start(ctx, s.expected, s.onTick, s.onTransition)
}

func (s *session) onTick(state model.PhaseState) {
	if state.TeamName == "" || !s.active() {
		return
	}
	s.target.SetText(ElemTeamBadge, state.TeamName)
}

func (s *session) onTransition(state model.PhaseState) {
	s.mu.Lock()
	if s.navigated {
		s.mu.Unlock()
		return
	}
	s.navigated = true
	s.done = true
	s.mu.Unlock()

	s.target.Navigate(model.GamePath(s.gameID))
}

// Close stops the phase sync and the clock. Responses still in flight are dropped.
func (s *session) Close() {
	s.mu.Lock()
	s.done = true
	ps := s.phase
	s.mu.Unlock()

	if ps != nil {
		ps.Stop()
	}
}

// showError renders a failed mutation next to the action that caused it
func (s *session) showError(err error) {
	msg := err.Error()
	var mutErr *api.MutationError
	if errors.As(err, &mutErr) && mutErr.Message != "" {
		msg = mutErr.Message
	}
	s.target.SetText(ElemInlineError, msg)
	s.target.ToggleClass(ElemInlineError, "hidden", false)
}

func (s *session) clearError() {
	s.target.SetText(ElemInlineError, "")
	s.target.ToggleClass(ElemInlineError, "hidden", true)
}
