package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rustdiag/internal/config"
	"rustdiag/internal/paths"
)

var (
	rulesWriteFile string
	rulesFormat    string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the effective rule set",
	Long: `Print the rules a diagnostic pass checks: the configured rules merged with the
rule-set file, or the --rules flag when given.

Use --write-file to save them as a TOML rule-set file that rulesFile can point at.`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

func init() {
	rulesCmd.Flags().StringVar(&rulesWriteFile, "write-file", "", "Write the rules to a TOML rule-set file")
	rulesCmd.Flags().StringVarP(&rulesFormat, "output", "o", "human", "Output format (human, json)")
	rootCmd.AddCommand(rulesCmd)
}

func runRules(cmd *cobra.Command, args []string) error {
	format := OutputFormat(rulesFormat)
	if err := validateFormat(format, FormatHuman, FormatJSON); err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	if rulesWriteFile != "" {
		rs := &config.RuleSet{Rules: make([]config.RuleEntry, 0, len(s.rules))}
		for _, r := range s.rules {
			rs.Rules = append(rs.Rules, config.RuleEntry{Name: r})
		}
		path := paths.Resolve(s.project.Root, rulesWriteFile)
		if err := rs.Save(path); err != nil {
			return fmt.Errorf("failed to write rule set: %w", err)
		}
		fmt.Fprintf(out, "Wrote %d rules to %s\n", len(s.rules), path)
		return nil
	}

	if format == FormatJSON {
		text, err := formatJSON(map[string]interface{}{
			"project":    s.project.Name(),
			"lintPrefix": s.cfg.Analyzer.LintPrefix,
			"rules":      s.rules,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		return nil
	}

	fmt.Fprintf(out, "%d rules for %s:\n", len(s.rules), s.project.Name())
	for _, r := range s.rules {
		fmt.Fprintf(out, "  %s%s\n", s.cfg.Analyzer.LintPrefix, r)
	}
	return nil
}
