package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ppiankov/citegame/internal/model"
	"github.com/ppiankov/citegame/internal/view"
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Judge citations during the verification phase",
	Long: `Verify walks another team's brief and records a verdict per citation.

Example:
  citegame verify show
  citegame verify show c2
  citegame verify flag c2 fake
  citegame verify next c2`,
}

var verifyShowCmd = &cobra.Command{
	Use:   "show [citation-id]",
	Short: "Show the brief, or one citation",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVerification(cmd, func(ctx context.Context, v *view.Verification, target *view.MemoryTarget) error {
			if len(args) == 1 {
				if err := v.SelectCitation(args[0]); err != nil {
					return err
				}
				return printSelected(cmd, v, args[0])
			}
			return printVerification(cmd, v, target)
		})
	},
}

var verifyFlagCmd = &cobra.Command{
	Use:   "flag <citation-id> <legit|fake>",
	Short: "Record a verdict",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVerification(cmd, func(ctx context.Context, v *view.Verification, target *view.MemoryTarget) error {
			if err := v.Flag(ctx, args[0], model.Verdict(args[1])); err != nil {
				return mutationFailure(target, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("✓ %s marked %s", args[0], args[1])))
			fmt.Fprintln(cmd.OutOrStdout(), target.Text(view.ElemReviewCount))
			return nil
		})
	},
}

var verifyNextCmd = &cobra.Command{
	Use:   "next [citation-id]",
	Short: "Show the citation after the given one (or the first)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return stepCitation(cmd, args, (*view.Verification).Next)
	},
}

var verifyPrevCmd = &cobra.Command{
	Use:   "prev <citation-id>",
	Short: "Show the citation before the given one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return stepCitation(cmd, args, (*view.Verification).Previous)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.AddCommand(verifyShowCmd, verifyFlagCmd, verifyNextCmd, verifyPrevCmd)
}

func withVerification(cmd *cobra.Command, fn func(ctx context.Context, v *view.Verification, target *view.MemoryTarget) error) error {
	client, cfg, err := newClient()
	if err != nil {
		return err
	}
	if err := requireSession(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.Timeout*3)
	defer cancel()

	target := view.NewMemoryTarget(nil)
	v := view.NewVerification(client, target, client.GameID())
	defer v.Close()
	if err := v.Load(ctx); err != nil {
		return err
	}
	return fn(ctx, v, target)
}

func stepCitation(cmd *cobra.Command, args []string, step func(*view.Verification) error) error {
	return withVerification(cmd, func(ctx context.Context, v *view.Verification, target *view.MemoryTarget) error {
		if len(args) == 1 {
			if err := v.SelectCitation(args[0]); err != nil {
				return err
			}
			if v.Selected() != args[0] {
				return fmt.Errorf("unknown citation %s", args[0])
			}
		}
		if err := step(v); err != nil {
			return err
		}
		selected := v.Selected()
		if selected == "" {
			return fmt.Errorf("no citations to review")
		}
		return printSelected(cmd, v, selected)
	})
}

func printVerification(cmd *cobra.Command, v *view.Verification, target *view.MemoryTarget) error {
	out := cmd.OutOrStdout()
	store := v.Store()
	err := printBrief(out, v.Document(), briefStyles{
		displayText: true,
		citation: func(c model.Citation) lipgloss.Style {
			ann := store.Annotation(c.CitationID)
			if ann.Kind != model.Flagged {
				return citationStyle
			}
			if ann.Verdict == model.VerdictFake {
				return fakeStyle
			}
			return legitStyle
		},
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, titleStyle.Render(target.Text(view.ElemReviewCount)))
	return nil
}

func printSelected(cmd *cobra.Command, v *view.Verification, citationID string) error {
	out := cmd.OutOrStdout()
	ids := v.CitationIDs()
	pos := 0
	for i, id := range ids {
		if id == citationID {
			pos = i + 1
		}
	}
	if pos == 0 {
		return fmt.Errorf("unknown citation %s", citationID)
	}

	verdict := "not reviewed"
	if ann := v.Store().Annotation(citationID); ann.Kind == model.Flagged {
		verdict = string(ann.Verdict)
	}
	fmt.Fprintf(out, "%s  %s\n", titleStyle.Render(citationID), mutedStyle.Render(fmt.Sprintf("%d of %d", pos, len(ids))))
	fmt.Fprintln(out, v.Document().DisplayText(citationID))
	fmt.Fprintf(out, "Current verdict: %s\n", verdict)
	return nil
}
