package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rustdiag/internal/patch"
)

var (
	patchConfirm bool
	patchFormat  string
)

var patchCmd = &cobra.Command{
	Use:   "patch <revision>",
	Short: "Report which warnings a revision's changes touch",
	Long: `Diagnose the project at HEAD and print every hunk of the diff from HEAD to the
given revision that overlaps a warning, preceded by the warning labels.

With --confirm the revision is checked out into a temporary worktree and diagnosed
again; only warnings that are gone there are reported as resolved.

Examples:
  rustdiag patch HEAD~1
  rustdiag patch fix-unwraps --confirm`,
	Args: cobra.ExactArgs(1),
	RunE: runPatch,
}

func init() {
	patchCmd.Flags().BoolVar(&patchConfirm, "confirm", false, "Re-diagnose the revision and report only resolved warnings")
	patchCmd.Flags().StringVarP(&patchFormat, "output", "o", "human", "Output format (human, json)")
	rootCmd.AddCommand(patchCmd)
}

func runPatch(cmd *cobra.Command, args []string) error {
	format := OutputFormat(patchFormat)
	if err := validateFormat(format, FormatHuman, FormatJSON); err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := s.newPipeline()
	if err != nil {
		return err
	}

	ctx, cancel := newContext()
	defer cancel()

	res, err := p.Patch(ctx, args[0], patchConfirm)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == FormatJSON {
		text, err := formatJSON(res)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		return nil
	}

	printSummary(out, res.Summary())
	if err := patch.Render(out, res.Reports); err != nil {
		return err
	}

	verdict := "touched"
	if res.Confirmed {
		verdict = "resolved"
	}
	fmt.Fprintf(out, "\n%s of %d touched warnings %s by %s\n",
		okColor.Sprint(res.Resolved), res.Touched.Count(), verdict, shortHash(res.Target))
	return nil
}

func shortHash(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
