package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"rustdiag/internal/span"
	"rustdiag/internal/storage"
)

var (
	pairsRule   string
	pairsShow   bool
	pairsFormat string
)

var pairsCmd = &cobra.Command{
	Use:   "pairs",
	Short: "List the before/after pairs recorded in the dataset",
	Long: `List the pairs earlier transform runs recorded in the dataset database, ordered by
rule, path and offset. --rule accepts a rule with or without the lint prefix.

Use --show to print the annotated before and after text of every pair.`,
	Args: cobra.NoArgs,
	RunE: runPairs,
}

func init() {
	pairsCmd.Flags().StringVar(&pairsRule, "rule", "", "Only list pairs of this rule")
	pairsCmd.Flags().BoolVar(&pairsShow, "show", false, "Print the before and after text")
	pairsCmd.Flags().StringVarP(&pairsFormat, "output", "o", "human", "Output format (human, json)")
	rootCmd.AddCommand(pairsCmd)
}

// PairCLI is the listing form of a stored pair.
type PairCLI struct {
	RunID  string      `json:"runId"`
	Rule   string      `json:"rule"`
	Path   string      `json:"path"`
	Offset int         `json:"offset"`
	End    int         `json:"end"`
	Spans  []span.Span `json:"spans,omitempty"`
	Before string      `json:"before,omitempty"`
	After  string      `json:"after,omitempty"`
}

func runPairs(cmd *cobra.Command, args []string) error {
	format := OutputFormat(pairsFormat)
	if err := validateFormat(format, FormatHuman, FormatJSON); err != nil {
		return err
	}

	// Listing always reads the dataset, configured or not.
	dbFlag = true
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	return listPairs(cmd.OutOrStdout(), s.dataset, qualifyRule(pairsRule, s.cfg.Analyzer.LintPrefix), format, pairsShow)
}

// qualifyRule adds the lint prefix stored rule ids carry.
func qualifyRule(rule, prefix string) string {
	rule = strings.TrimSpace(rule)
	if rule == "" || strings.HasPrefix(rule, prefix) {
		return rule
	}
	return prefix + rule
}

func listPairs(w io.Writer, db *storage.DB, rule string, format OutputFormat, show bool) error {
	stored, err := db.ListPairs(rule)
	if err != nil {
		return err
	}

	pairs := make([]PairCLI, 0, len(stored))
	for _, p := range stored {
		out := PairCLI{RunID: p.RunID, Rule: p.Rule, Path: p.Path, Offset: p.Offset, End: p.End, Spans: p.Spans}
		if show {
			out.Before = string(p.Before)
			out.After = string(p.After)
		}
		pairs = append(pairs, out)
	}

	if format == FormatJSON {
		text, err := formatJSON(pairs)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, text)
		return nil
	}

	if len(pairs) == 0 {
		fmt.Fprintln(w, "No pairs recorded.")
		return nil
	}
	fmt.Fprintf(w, "%d pairs:\n", len(pairs))
	for _, p := range pairs {
		fmt.Fprintf(w, "  %s %s@%d-%d (%d spans, run %s)\n",
			p.Rule, pathColor.Sprint(p.Path), p.Offset, p.End, len(p.Spans), shortHash(p.RunID))
		if show {
			fmt.Fprintf(w, "--- before\n%s\n+++ after\n%s\n", p.Before, p.After)
		}
	}
	return nil
}
