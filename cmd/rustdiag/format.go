package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"rustdiag/internal/errors"
	"rustdiag/internal/pipeline"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
	FormatSARIF OutputFormat = "sarif"
)

var (
	summaryColor = color.New(color.FgYellow, color.Bold)
	okColor      = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	failColor    = color.New(color.FgRed, color.Bold)
	pathColor    = color.New(color.FgCyan)
)

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// printSummary writes the console line of a diagnostic pass.
func printSummary(w io.Writer, summary string) {
	summaryColor.Fprintln(w, summary)
}

// printSkipped lists files a run left out.
func printSkipped(w io.Writer, skipped []pipeline.Skipped) {
	if len(skipped) == 0 {
		return
	}
	warnColor.Fprintf(w, "Skipped %d files:\n", len(skipped))
	for _, s := range skipped {
		fmt.Fprintf(w, "  %s: %v\n", pathColor.Sprint(s.Path), s.Err)
	}
}

// printError writes err with its code and the suggested fixes for that code.
func printError(w io.Writer, err error) {
	code := errors.CodeOf(err)
	failColor.Fprint(w, "Error: ")
	fmt.Fprintln(w, err.Error())

	fixes := errors.GetSuggestedFixes(code)
	if len(fixes) == 0 {
		return
	}
	fmt.Fprintln(w, "  Suggested fixes:")
	for _, fix := range fixes {
		fmt.Fprintf(w, "    - %s\n", fix.Description)
		switch {
		case fix.Command != "":
			fmt.Fprintf(w, "      $ %s\n", strings.ReplaceAll(fix.Command, "${retry_command}", retryCommand()))
		case fix.URL != "":
			fmt.Fprintf(w, "      %s\n", fix.URL)
		}
	}
}

// retryCommand is the subcommand line to suggest when retrying.
func retryCommand() string {
	if len(retryArgs) == 0 {
		return "diagnose"
	}
	return strings.Join(retryArgs, " ")
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch errors.CodeOf(err) {
	case errors.ConfigInvalid, errors.NotACargoProject, errors.NotAGitRepository, errors.RevisionNotFound:
		return 2
	case errors.AnalyzerUnavailable:
		return 3
	case errors.AnalyzerFailed, errors.FixerFailed, errors.Timeout:
		return 4
	default:
		return 1
	}
}
