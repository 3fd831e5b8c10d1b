package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rustdiag/internal/analyzer"
	"rustdiag/internal/config"
	"rustdiag/internal/errors"
	"rustdiag/internal/git"
	"rustdiag/internal/items"
	"rustdiag/internal/project"
	"rustdiag/internal/slogutil"
)

var doctorFormat string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the tools rustdiag depends on",
	Long: `Check that the project, its configuration and the external tools are usable:
cargo with clippy, the formatter, configured rewriters, git and the tree-sitter
parser used to split files into items.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().StringVarP(&doctorFormat, "output", "o", "human", "Output format (human, json)")
	rootCmd.AddCommand(doctorCmd)
}

// DoctorResponseCLI contains diagnostic results for CLI output
type DoctorResponseCLI struct {
	Healthy bool             `json:"healthy"`
	Checks  []DoctorCheckCLI `json:"checks"`
}

// DoctorCheckCLI represents a single diagnostic check
type DoctorCheckCLI struct {
	Name           string             `json:"name"`
	Status         string             `json:"status"` // "pass", "warn", "fail"
	Message        string             `json:"message"`
	SuggestedFixes []errors.FixAction `json:"suggestedFixes,omitempty"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	format := OutputFormat(doctorFormat)
	if err := validateFormat(format, FormatHuman, FormatJSON); err != nil {
		return err
	}

	ctx, cancel := newContext()
	defer cancel()

	start := time.Now()
	resp := runChecks(ctx, dirFlag, analyzer.RealRunner{})

	out := cmd.OutOrStdout()
	if format == FormatJSON {
		text, err := formatJSON(resp)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
	} else {
		fmt.Fprint(out, formatDoctorHuman(resp))
		fmt.Fprintf(out, "(Diagnostics took %dms)\n", time.Since(start).Milliseconds())
	}

	if !resp.Healthy {
		return errors.New(errors.AnalyzerUnavailable, "some checks failed", nil)
	}
	return nil
}

// runChecks inspects the project around dir and the tools available through exec.
func runChecks(ctx context.Context, dir string, exec analyzer.ExecRunner) *DoctorResponseCLI {
	resp := &DoctorResponseCLI{Healthy: true}
	add := func(c DoctorCheckCLI) {
		if c.Status == "fail" {
			resp.Healthy = false
		}
		resp.Checks = append(resp.Checks, c)
	}

	cfg := config.DefaultConfig()
	root := dir
	proj, err := project.Find(dir)
	if err != nil {
		add(failCheck("project", err))
	} else {
		root = proj.Root
		add(DoctorCheckCLI{Name: "project", Status: "pass", Message: fmt.Sprintf("%s at %s", proj.Name(), proj.Root)})

		loaded, err := config.LoadConfig(root)
		switch {
		case err != nil:
			add(failCheck("config", errors.New(errors.ConfigInvalid, "cannot load configuration", err)))
		case loaded.Validate() != nil:
			add(failCheck("config", errors.New(errors.ConfigInvalid, loaded.Validate().Error(), nil)))
		default:
			cfg = loaded
			rules, err := cfg.EffectiveRules(root)
			if err != nil {
				add(failCheck("config", errors.New(errors.ConfigInvalid, "cannot load rule set", err)))
			} else {
				add(DoctorCheckCLI{Name: "config", Status: "pass", Message: fmt.Sprintf("%d rules enabled", len(rules))})
			}
		}
	}

	runner := analyzer.NewRunner(cfg, exec, slogutil.NewDiscardLogger())
	if err := runner.Available(); err != nil {
		add(failCheck("analyzer", err))
	} else {
		stdout, _, err := exec.Run(ctx, root, cfg.Analyzer.Command, "clippy", "--version")
		if err != nil {
			add(failCheck("analyzer", errors.New(errors.AnalyzerUnavailable, "clippy is not installed", err)))
		} else {
			add(DoctorCheckCLI{Name: "analyzer", Status: "pass", Message: strings.TrimSpace(string(stdout))})
		}
	}

	if cfg.Formatter.Enabled {
		add(toolCheck(exec, "formatter", cfg.Formatter.Command, "warn"))
	}
	rewriters := make([]string, 0, len(cfg.Rewriters))
	for rule := range cfg.Rewriters {
		rewriters = append(rewriters, rule)
	}
	sort.Strings(rewriters)
	for _, rule := range rewriters {
		add(toolCheck(exec, "rewriter "+rule, cfg.Rewriters[rule].Command, "fail"))
	}

	if _, err := exec.LookPath("git"); err != nil {
		add(DoctorCheckCLI{Name: "git", Status: "warn", Message: "git not found; patch is unavailable"})
	} else if !git.IsRepository(root) {
		add(DoctorCheckCLI{
			Name:           "git",
			Status:         "warn",
			Message:        "not a git repository; patch is unavailable",
			SuggestedFixes: errors.GetSuggestedFixes(errors.NotAGitRepository),
		})
	} else {
		add(DoctorCheckCLI{Name: "git", Status: "pass", Message: "repository found"})
	}

	if items.IsAvailable() {
		add(DoctorCheckCLI{Name: "tree-sitter", Status: "pass", Message: "item extraction available"})
	} else {
		add(DoctorCheckCLI{Name: "tree-sitter", Status: "fail", Message: "built without cgo; transform cannot split files into items"})
	}

	return resp
}

func failCheck(name string, err error) DoctorCheckCLI {
	return DoctorCheckCLI{
		Name:           name,
		Status:         "fail",
		Message:        err.Error(),
		SuggestedFixes: errors.GetSuggestedFixes(errors.CodeOf(err)),
	}
}

// toolCheck looks up command, reporting status when it is missing.
func toolCheck(exec analyzer.ExecRunner, name, command, status string) DoctorCheckCLI {
	path, err := exec.LookPath(command)
	if err != nil {
		return DoctorCheckCLI{Name: name, Status: status, Message: fmt.Sprintf("%s not found in PATH", command)}
	}
	return DoctorCheckCLI{Name: name, Status: "pass", Message: path}
}

// formatDoctorHuman formats a DoctorResponseCLI in human-readable format
func formatDoctorHuman(resp *DoctorResponseCLI) string {
	var b strings.Builder

	b.WriteString("rustdiag doctor\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if resp.Healthy {
		b.WriteString(okColor.Sprint("✓ All checks passed") + "\n\n")
	} else {
		b.WriteString(failColor.Sprint("✗ Issues found") + "\n\n")
	}

	for _, check := range resp.Checks {
		var icon string
		switch check.Status {
		case "pass":
			icon = okColor.Sprint("✓")
		case "warn":
			icon = warnColor.Sprint("⚠")
		case "fail":
			icon = failColor.Sprint("✗")
		default:
			icon = "?"
		}
		b.WriteString(fmt.Sprintf("%s %s: %s\n", icon, check.Name, check.Message))

		if len(check.SuggestedFixes) > 0 {
			b.WriteString("  Suggested fixes:\n")
			for _, fix := range check.SuggestedFixes {
				b.WriteString(fmt.Sprintf("    - %s\n", fix.Description))
				if fix.Command != "" {
					b.WriteString(fmt.Sprintf("      $ %s\n", fix.Command))
				}
			}
		}
	}
	b.WriteString("\n")

	return b.String()
}
