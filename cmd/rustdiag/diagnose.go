package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"rustdiag/internal/version"
)

var diagnoseFormat string

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Mark up every warning in the project's source",
	Long: `Run clippy with the configured rules and write a copy of every reported file
into the diagnostics tree, with each warning wrapped in comment markers:

  /*#[Warning(clippy::unwrap_used)*/x.unwrap()/*#[Warning(clippy::unwrap_used)*/

Previously generated files are removed first.

Examples:
  rustdiag diagnose
  rustdiag diagnose --rules unwrap_used,ptr_arg
  rustdiag diagnose -o sarif > clippy.sarif`,
	Args: cobra.NoArgs,
	RunE: runDiagnose,
}

func init() {
	diagnoseCmd.Flags().StringVarP(&diagnoseFormat, "output", "o", "human", "Output format (human, json, sarif)")
	rootCmd.AddCommand(diagnoseCmd)
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	format := OutputFormat(diagnoseFormat)
	if err := validateFormat(format, FormatHuman, FormatJSON, FormatSARIF); err != nil {
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
	res, err := p.Diagnose(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case FormatJSON:
		text, err := formatJSON(res)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
	case FormatSARIF:
		text, err := FormatSpansAsSARIF(res.Spans, p.Root(), version.Version)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
	default:
		printSummary(out, res.Summary())
		for _, f := range res.Files {
			fmt.Fprintf(out, "  %s  %d warnings\n", pathColor.Sprint(f.Path), len(f.Spans))
		}
		printSkipped(os.Stderr, res.Skipped)
		fmt.Fprintf(out, "\nWritten to %s (%dms)\n", p.Writer().DiagnosticsDir(), time.Since(start).Milliseconds())
	}
	return nil
}
