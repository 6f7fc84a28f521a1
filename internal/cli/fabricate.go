package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ppiankov/citegame/internal/annotate"
	"github.com/ppiankov/citegame/internal/api"
	"github.com/ppiankov/citegame/internal/model"
	"github.com/ppiankov/citegame/internal/view"
)

// fabricateCmd represents the fabricate command
var fabricateCmd = &cobra.Command{
	Use:   "fabricate",
	Short: "Alter citations during the fabrication phase",
	Long: `Fabricate shows the brief and swaps citations for hallucinations.

Example:
  citegame fabricate show
  citegame fabricate show c3
  citegame fabricate select c3 misquotation mq2
  citegame fabricate swap c3 misquotation mq2
  citegame fabricate unswap c3`,
}

var fabricateShowCmd = &cobra.Command{
	Use:   "show [citation-id]",
	Short: "Show the brief, or the options of one citation",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFabrication(cmd, func(ctx context.Context, f *view.Fabrication, target *view.MemoryTarget) error {
			if len(args) == 1 {
				if err := f.SelectCitation(args[0]); err != nil {
					return err
				}
				printOptions(cmd, f, args[0], "", "")
				return nil
			}
			return printFabrication(cmd, f, target)
		})
	},
}

var fabricateSelectCmd = &cobra.Command{
	Use:   "select <citation-id> <type> <option-id>",
	Short: "Preview an option in the brief without swapping",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFabrication(cmd, func(ctx context.Context, f *view.Fabrication, target *view.MemoryTarget) error {
			htype := model.HallucinationType(args[1])
			if err := f.SelectOption(args[0], htype, args[2]); err != nil {
				return err
			}
			if err := printFabrication(cmd, f, target); err != nil {
				return err
			}
			printOptions(cmd, f, args[0], htype, args[2])
			return nil
		})
	},
}

var fabricateSwapCmd = &cobra.Command{
	Use:   "swap <citation-id> <type> <option-id>",
	Short: "Swap a citation for a hallucination",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFabrication(cmd, func(ctx context.Context, f *view.Fabrication, target *view.MemoryTarget) error {
			htype := model.HallucinationType(args[1])
			if _, ok := f.Store().Options(args[0]); !ok {
				return fmt.Errorf("citation %s has no swap options", args[0])
			}
			if err := f.SelectOption(args[0], htype, args[2]); err != nil {
				return err
			}
			if err := f.ConfirmSwap(ctx, args[0]); err != nil {
				return mutationFailure(target, err)
			}
			ann := f.Store().Annotation(args[0])
			if ann.Kind != model.Swapped || ann.Swap.Type != htype || ann.Swap.OptionID != args[2] {
				return fmt.Errorf("%w: %s/%s", annotate.ErrUnknownOption, htype, args[2])
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("✓ Swapped "+args[0]))
			fmt.Fprintln(cmd.OutOrStdout(), target.Text(view.ElemSwapCount))
			return nil
		})
	},
}

var fabricateUnswapCmd = &cobra.Command{
	Use:   "unswap <citation-id>",
	Short: "Restore a swapped citation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFabrication(cmd, func(ctx context.Context, f *view.Fabrication, target *view.MemoryTarget) error {
			if err := f.UndoSwap(ctx, args[0]); err != nil {
				return mutationFailure(target, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("✓ Restored "+args[0]))
			fmt.Fprintln(cmd.OutOrStdout(), target.Text(view.ElemSwapCount))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(fabricateCmd)
	fabricateCmd.AddCommand(fabricateShowCmd, fabricateSelectCmd, fabricateSwapCmd, fabricateUnswapCmd)
}

// withFabrication loads the fabrication view for one command
func withFabrication(cmd *cobra.Command, fn func(ctx context.Context, f *view.Fabrication, target *view.MemoryTarget) error) error {
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
	f := view.NewFabrication(client, target, client.GameID())
	defer f.Close()
	if err := f.Load(ctx); err != nil {
		return err
	}
	return fn(ctx, f, target)
}

func printFabrication(cmd *cobra.Command, f *view.Fabrication, target *view.MemoryTarget) error {
	out := cmd.OutOrStdout()
	store := f.Store()
	err := printBrief(out, f.Document(), briefStyles{
		highlights: store.HighlightRegions,
		citation: func(c model.Citation) lipgloss.Style {
			if store.Annotation(c.CitationID).Kind == model.Swapped {
				return swappedStyle
			}
			return citationStyle
		},
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, titleStyle.Render(target.Text(view.ElemSwapCount)))
	for _, rec := range store.Swaps() {
		fmt.Fprintf(out, "  %s  %s / %s\n", rec.CitationID, rec.HallucinationType.Label(), rec.OptionID)
	}
	return nil
}

// printOptions lists the swap options of a citation, marking the active one
func printOptions(cmd *cobra.Command, f *view.Fabrication, citationID string, htype model.HallucinationType, optionID string) {
	out := cmd.OutOrStdout()
	opts, ok := f.Store().Options(citationID)
	if !ok {
		fmt.Fprintln(out, mutedStyle.Render("No options available for "+citationID))
		return
	}

	current := f.Store().Annotation(citationID)
	if htype == "" && current.Kind == model.Swapped {
		htype, optionID = current.Swap.Type, current.Swap.OptionID
	}

	fmt.Fprintln(out, titleStyle.Render(opts.OriginalDisplay))
	for _, t := range model.HallucinationTypes {
		options := opts.Options[t]
		if len(options) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s (%d)  %s\n", t.Label(), len(options), mutedStyle.Render(string(t)))
		for _, opt := range options {
			marker := " "
			if t == htype && opt.ID == optionID {
				marker = "›"
			}
			line := fmt.Sprintf("%s %-6s %s", marker, opt.ID, opt.Label)
			if opt.Difficulty != "" {
				line += mutedStyle.Render(" [" + opt.Difficulty + "]")
			}
			fmt.Fprintln(out, line)
			if preview := opt.Preview(); preview != "" {
				fmt.Fprintln(out, "         "+mutedStyle.Render(preview))
			}
		}
	}
}

// mutationFailure reports a refused mutation the way the view showed it
func mutationFailure(target *view.MemoryTarget, err error) error {
	if errors.Is(err, api.ErrMutationRejected) {
		return fmt.Errorf("%w: %s", api.ErrMutationRejected, errorStyle.Render(target.Text(view.ElemInlineError)))
	}
	return err
}
