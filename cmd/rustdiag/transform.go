package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var transformFormat string

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Run the auto-fixer and collect before/after pairs of the changed items",
	Long: `Diagnose the project, run configured rewriters and one clippy --fix pass, then
write every changed item as a pair of annotated files per rule:

  transform/<rule>/<dir>/<stem>/<offset>.2.rs   before the fix
  transform/<rule>/<dir>/<stem>/<offset>.3.rs   after the fix

with a manifest.yaml per rule. Source files are restored once the fixed buffers
have been read, also when the fixer fails.

Use --db to record the run, its spans and its pairs in the dataset database.`,
	Args: cobra.NoArgs,
	RunE: runTransform,
}

func init() {
	transformCmd.Flags().StringVarP(&transformFormat, "output", "o", "human", "Output format (human, json)")
	rootCmd.AddCommand(transformCmd)
}

func runTransform(cmd *cobra.Command, args []string) error {
	format := OutputFormat(transformFormat)
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

	start := time.Now()
	res, err := p.Transform(ctx)
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
	fixed, remaining := 0, 0
	for _, f := range res.Files {
		for _, rr := range f.Rules {
			fixed += len(rr.Fixed)
			remaining += len(rr.Remaining)
		}
	}
	fmt.Fprintf(out, "Fixed %s warnings, %s remain.\n",
		okColor.Sprint(fixed), warnColor.Sprint(remaining))
	if len(res.Rewritten) > 0 {
		fmt.Fprintf(out, "Rewritten: %d files\n", len(res.Rewritten))
	}
	fmt.Fprintf(out, "Pairs: %d\n", res.Pairs)
	for _, m := range res.Manifests {
		fmt.Fprintf(out, "  %s\n", pathColor.Sprint(m))
	}
	printSkipped(os.Stderr, res.Skipped)
	if s.dataset != nil {
		fmt.Fprintf(out, "Recorded run %s in %s\n", res.RunID, s.dataset.Path())
	}
	fmt.Fprintf(out, "\n(Transform took %dms)\n", time.Since(start).Milliseconds())
	return nil
}
