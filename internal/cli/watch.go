package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/citegame/internal/logging"
	"github.com/ppiankov/citegame/internal/model"
	"github.com/ppiankov/citegame/internal/phasesync"
)

var watchExpect string

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the game phase and countdown",
	Long: `Watch polls the game phase, shows the countdown and exits when the
phase moves on. In the lobby it lists the teams.

Example:
  citegame watch
  citegame watch --expect fabrication`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchExpect, "expect", "", "phase to wait out (default: the current phase)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	client, cfg, err := newClient()
	if err != nil {
		return err
	}
	if cfg.Server.SessionToken == "" && cfg.Server.GameID == "" {
		return fmt.Errorf("need a session token or a game id (--token or --game)")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	out := cmd.OutOrStdout()

	state, err := client.Phase(ctx)
	if err != nil {
		return fmt.Errorf("read phase: %w", err)
	}
	expected := state.Phase
	if watchExpect != "" {
		expected = model.Phase(watchExpect)
		if !expected.Valid() {
			return fmt.Errorf("unknown phase %q", watchExpect)
		}
	}

	fmt.Fprintln(out, titleStyle.Render("Phase: "+string(state.Phase)))
	if state.TeamName != "" {
		fmt.Fprintln(out, mutedStyle.Render("Team: "+state.TeamName))
	}
	switch state.Phase {
	case model.PhaseFabrication, model.PhaseVerification:
		if progress, err := client.Progress(ctx); err == nil {
			fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("Progress: %d swaps | %d reviewed | %d flagged",
				progress.SwapCount, progress.ReviewCount, progress.FlagCount)))
		} else {
			logging.Debug("progress unavailable", "err", err)
		}
	case model.PhaseLobby:
		if status, err := client.Status(ctx); err == nil {
			printTeams(cmd, status)
		} else {
			logging.Debug("status unavailable", "err", err)
		}
	}

	ps, changed, err := followPhase(ctx, out, client, phasesync.Options{
		PollInterval:     cfg.Sync.PollInterval,
		ClockInterval:    cfg.Sync.ClockInterval,
		WarningThreshold: cfg.Sync.WarningThreshold,
	}, state.Deadline, expected)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	if changed {
		fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("Phase changed: %s → %s", expected, ps.Phase)))
		fmt.Fprintln(out, mutedStyle.Render("Game page: "+model.GamePath(client.GameID())))
	}
	return nil
}

type clockLine struct {
	text    string
	warning bool
}

// followPhase redraws the clock until the phase leaves expected or ctx ends.
// Only the calling goroutine writes to out.
func followPhase(ctx context.Context, out io.Writer, fetcher phasesync.Fetcher, opts phasesync.Options, deadline time.Time, expected model.Phase) (model.PhaseState, bool, error) {
	clock := make(chan clockLine, 1)
	opts.OnClock = func(text string, warning bool) {
		select {
		case clock <- clockLine{text, warning}:
		default:
		}
	}
	sync := phasesync.New(fetcher, opts)
	sync.SetDeadline(deadline)

	changed := make(chan model.PhaseState, 1)
	err := sync.Start(ctx, expected, nil, func(ps model.PhaseState) {
		changed <- ps
	})
	if err != nil {
		return model.PhaseState{}, false, err
	}
	defer sync.Stop()

	for {
		select {
		case line := <-clock:
			fmt.Fprintf(out, "\r%s", renderClock(line.text, line.warning))
		case ps := <-changed:
			return ps, true, nil
		case <-ctx.Done():
			return model.PhaseState{}, false, nil
		}
	}
}

func printTeams(cmd *cobra.Command, status *model.GameStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Game %s\n", status.GameCode)
	for _, team := range status.Teams {
		fmt.Fprintf(out, "  %s (%d players)\n", team.TeamName, len(team.Players))
		for _, p := range team.Players {
			fmt.Fprintf(out, "    %s\n", mutedStyle.Render(p.PlayerName))
		}
	}
	if len(status.Unassigned) > 0 {
		fmt.Fprintf(out, "  Unassigned: %d\n", len(status.Unassigned))
	}
}
