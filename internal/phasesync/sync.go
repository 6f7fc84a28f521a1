// Package phasesync follows the server's game phase. It polls the phase
// endpoint, keeps the countdown clock running and fires a single transition
// when the phase moves away from the one the current view expects.
package phasesync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ppiankov/citegame/internal/logging"
	"github.com/ppiankov/citegame/internal/model"
	"github.com/ppiankov/citegame/internal/worker"
)

// ErrAlreadyStarted is returned by Start on a Sync that has left Idle
var ErrAlreadyStarted = errors.New("phase sync already started")

// State of the sync state machine
type State int

const (
	Idle State = iota
	Polling
	Transitioning
)

func (s State) String() string {
	switch s {
	case Polling:
		return "polling"
	case Transitioning:
		return "transitioning"
	default:
		return "idle"
	}
}

// Fetcher reads the current phase from the server
type Fetcher interface {
	Phase(ctx context.Context) (model.PhaseState, error)
}

// Options tunes a Sync. Zero values fall back to the defaults.
type Options struct {
	PollInterval     time.Duration
	ClockInterval    time.Duration
	WarningThreshold time.Duration
	Now              func() time.Time

	// OnClock receives the formatted countdown every clock tick once a deadline is known
	OnClock func(text string, warning bool)
}

// Sync is one view's phase follower
type Sync struct {
	fetcher Fetcher
	opts    Options
	log     *log.Logger

	mu       sync.Mutex
	state    State
	deadline time.Time
	poll     *worker.Task
	clock    *worker.Task
}

// New creates an idle Sync
func New(fetcher Fetcher, opts Options) *Sync {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2500 * time.Millisecond
	}
	if opts.ClockInterval <= 0 {
		opts.ClockInterval = time.Second
	}
	if opts.WarningThreshold <= 0 {
		opts.WarningThreshold = DefaultWarningThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sync{
		fetcher: fetcher,
		opts:    opts,
		log:     logging.WithPrefix("sync"),
	}
}

// Start begins polling. onTick runs after every successful poll; onTransition
// runs once, when the polled phase differs from expected, and polling stops
// with it. Neither callback may call Stop.
func (s *Sync) Start(ctx context.Context, expected model.Phase, onTick, onTransition func(model.PhaseState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle || s.poll != nil {
		return ErrAlreadyStarted
	}
	s.state = Polling

	s.poll = worker.Every(ctx, s.opts.PollInterval, func(ctx context.Context) bool {
		return s.pollOnce(ctx, expected, onTick, onTransition)
	})
	if s.opts.OnClock != nil {
		s.clock = worker.EveryNow(ctx, s.opts.ClockInterval, s.tickClock)
	}
	return nil
}

func (s *Sync) pollOnce(ctx context.Context, expected model.Phase, onTick, onTransition func(model.PhaseState)) bool {
	ps, err := s.fetcher.Phase(ctx)
	if ctx.Err() != nil {
		return false
	}
	if err == nil && !ps.Phase.Valid() {
		err = errors.New("unknown phase " + string(ps.Phase))
	}
	if err != nil {
		s.log.Debug("phase poll failed", "err", err)
		return true
	}

	s.mu.Lock()
	if s.state != Polling {
		s.mu.Unlock()
		return false
	}
	s.deadline = ps.Deadline
	transition := ps.Phase != expected
	if transition {
		s.state = Transitioning
	}
	s.mu.Unlock()

	if onTick != nil {
		onTick(ps)
	}
	if !transition {
		return true
	}

	s.log.Info("phase changed", "from", expected, "to", ps.Phase)
	if onTransition != nil {
		onTransition(ps)
	}
	return false
}

func (s *Sync) tickClock(ctx context.Context) bool {
	deadline := s.Deadline()
	if deadline.IsZero() {
		return true
	}
	cd := Countdown{Deadline: deadline, WarningThreshold: s.opts.WarningThreshold}
	now := s.opts.Now()
	s.opts.OnClock(cd.Format(now), cd.Warning(now))
	return true
}

// SetDeadline seeds the deadline before the first poll, e.g. from a status read
func (s *Sync) SetDeadline(deadline time.Time) {
	s.mu.Lock()
	s.deadline = deadline
	s.mu.Unlock()
}

// Deadline returns the last known deadline; zero when no timer runs
func (s *Sync) Deadline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline
}

// State returns the current state
func (s *Sync) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stop cancels the poll and clock tasks and waits for both to exit.
// A stopped Sync cannot be restarted.
func (s *Sync) Stop() {
	s.mu.Lock()
	poll, clock := s.poll, s.clock
	if s.state == Polling {
		s.state = Idle
	}
	s.mu.Unlock()

	if poll != nil {
		poll.Stop()
	}
	if clock != nil {
		clock.Stop()
	}
}
