package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/citegame/internal/logging"
)

// joinCmd represents the join command
var joinCmd = &cobra.Command{
	Use:   "join <game-code> <player-name>",
	Short: "Join a game lobby",
	Long: `Join a game by its code. The server answers with a session token and
game id; export them so later commands act as this player.

Example:
  citegame join ABCD alice`,
	Args: cobra.ExactArgs(2),
	RunE: runJoin,
}

func init() {
	rootCmd.AddCommand(joinCmd)
}

func runJoin(cmd *cobra.Command, args []string) error {
	client, cfg, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.Timeout*2)
	defer cancel()

	resp, err := client.Join(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("join failed: %w", err)
	}
	logging.Info("joined game", "game", resp.GameCode, "player", resp.PlayerID)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("✓ Joined game %s", resp.GameCode)))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "export CITEGAME_SERVER_SESSION_TOKEN=%s\n", resp.SessionToken)
	fmt.Fprintf(out, "export CITEGAME_SERVER_GAME_ID=%s\n", resp.GameID)
	return nil
}
