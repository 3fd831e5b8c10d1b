package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"

	"rustdiag/internal/span"
)

// SARIF 2.1.0 schema types
// See: https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-v2.1.0.html

// SARIFReport is the top-level SARIF document.
type SARIFReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []SARIFRun `json:"runs"`
}

// SARIFRun represents a single analysis run.
type SARIFRun struct {
	Tool        SARIFTool         `json:"tool"`
	Results     []SARIFResult     `json:"results,omitempty"`
	Invocations []SARIFInvocation `json:"invocations,omitempty"`
}

// SARIFTool describes the analysis tool.
type SARIFTool struct {
	Driver SARIFDriver `json:"driver"`
}

// SARIFDriver describes the primary analysis component.
type SARIFDriver struct {
	Name            string      `json:"name"`
	Version         string      `json:"version,omitempty"`
	InformationURI  string      `json:"informationUri,omitempty"`
	Rules           []SARIFRule `json:"rules,omitempty"`
	SemanticVersion string      `json:"semanticVersion,omitempty"`
}

// SARIFRule describes a rule that detected an issue.
type SARIFRule struct {
	ID                   string                  `json:"id"`
	Name                 string                  `json:"name,omitempty"`
	ShortDescription     *SARIFMessage           `json:"shortDescription,omitempty"`
	DefaultConfiguration *SARIFRuleConfiguration `json:"defaultConfiguration,omitempty"`
	HelpURI              string                  `json:"helpUri,omitempty"`
}

// SARIFRuleConfiguration describes the default configuration for a rule.
type SARIFRuleConfiguration struct {
	Level string `json:"level,omitempty"` // error, warning, note, none
}

// SARIFResult represents a single finding.
type SARIFResult struct {
	RuleID       string                 `json:"ruleId"`
	RuleIndex    int                    `json:"ruleIndex"`
	Level        string                 `json:"level,omitempty"`
	Message      SARIFMessage           `json:"message"`
	Locations    []SARIFLocation        `json:"locations,omitempty"`
	Fingerprints map[string]string      `json:"fingerprints,omitempty"`
	Properties   map[string]interface{} `json:"properties,omitempty"`
}

// SARIFMessage contains text in various formats.
type SARIFMessage struct {
	Text     string `json:"text,omitempty"`
	Markdown string `json:"markdown,omitempty"`
}

// SARIFLocation describes where a result was found.
type SARIFLocation struct {
	PhysicalLocation *SARIFPhysicalLocation `json:"physicalLocation,omitempty"`
}

// SARIFPhysicalLocation identifies a file and region.
type SARIFPhysicalLocation struct {
	ArtifactLocation *SARIFArtifactLocation `json:"artifactLocation,omitempty"`
	Region           *SARIFRegion           `json:"region,omitempty"`
}

// SARIFArtifactLocation identifies a file.
type SARIFArtifactLocation struct {
	URI       string `json:"uri,omitempty"`
	URIBaseID string `json:"uriBaseId,omitempty"`
}

// SARIFRegion identifies a region within a file.
type SARIFRegion struct {
	StartLine  int `json:"startLine,omitempty"`
	EndLine    int `json:"endLine,omitempty"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
}

// SARIFInvocation describes a single invocation of the tool.
type SARIFInvocation struct {
	ExecutionSuccessful bool                   `json:"executionSuccessful"`
	WorkingDirectory    *SARIFArtifactLocation `json:"workingDirectory,omitempty"`
	Machine             string                 `json:"machine,omitempty"`
}

// FormatSpansAsSARIF converts the spans of a diagnostic pass to SARIF format.
func FormatSpansAsSARIF(spans span.FileSpans, root, version string) (string, error) {
	ruleIDs := spans.Rules()
	ruleIndex := make(map[string]int, len(ruleIDs))
	rules := make([]SARIFRule, 0, len(ruleIDs))
	for _, id := range ruleIDs {
		ruleIndex[id] = len(rules)
		rules = append(rules, SARIFRule{
			ID:   id,
			Name: span.RuleName(id),
			ShortDescription: &SARIFMessage{
				Text: fmt.Sprintf("clippy lint %s", span.RuleName(id)),
			},
			HelpURI: "https://rust-lang.github.io/rust-clippy/master/index.html#" + span.RuleName(id),
		})
	}

	results := make([]SARIFResult, 0, spans.Count())
	for _, path := range spans.Files() {
		ss := append([]span.Span(nil), spans[path]...)
		sort.SliceStable(ss, func(i, j int) bool { return ss[i].StartByte < ss[j].StartByte })

		for _, s := range ss {
			text := s.Label()
			if s.Note != "" {
				text += "\n" + s.Note
			}
			result := SARIFResult{
				RuleID:    s.RuleID,
				RuleIndex: ruleIndex[s.RuleID],
				Level:     severityToSARIFLevel(s.Severity),
				Message:   SARIFMessage{Text: text},
				Locations: []SARIFLocation{
					{
						PhysicalLocation: &SARIFPhysicalLocation{
							ArtifactLocation: &SARIFArtifactLocation{
								URI:       toRelativeURI(path, root),
								URIBaseID: "%SRCROOT%",
							},
							Region: &SARIFRegion{
								StartLine:  s.StartLine,
								EndLine:    s.EndLine,
								ByteOffset: s.StartByte,
								ByteLength: s.EndByte - s.StartByte,
							},
						},
					},
				},
				Fingerprints: map[string]string{
					"rustdiag/v1": generateFingerprint(path, s),
				},
			}
			if s.HasSuggestion() {
				result.Properties = map[string]interface{}{"suggestion": *s.Suggestion}
			}
			results = append(results, result)
		}
	}

	report := SARIFReport{
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		Version: "2.1.0",
		Runs: []SARIFRun{
			{
				Tool: SARIFTool{
					Driver: SARIFDriver{
						Name:            "rustdiag",
						Version:         version,
						SemanticVersion: version,
						Rules:           rules,
					},
				},
				Results: results,
				Invocations: []SARIFInvocation{
					{
						ExecutionSuccessful: true,
						WorkingDirectory: &SARIFArtifactLocation{
							URI: root,
						},
						Machine: runtime.GOOS + "/" + runtime.GOARCH,
					},
				},
			},
		},
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal SARIF: %w", err)
	}
	return string(data), nil
}

// severityToSARIFLevel converts an analyzer level to a SARIF level.
func severityToSARIFLevel(s span.Severity) string {
	switch s {
	case span.SeverityError, span.SeverityICE:
		return "error"
	case span.SeverityWarning:
		return "warning"
	case span.SeverityNote, span.SeverityHelp, span.SeverityFailureNote:
		return "note"
	default:
		return "warning"
	}
}

// generateFingerprint creates a stable fingerprint for deduplication.
func generateFingerprint(path string, s span.Span) string {
	data := fmt.Sprintf("%s:%d:%d:%s", path, s.StartByte, s.EndByte, s.RuleID)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:16]
}

// toRelativeURI converts a path to a URI relative to base. Relative paths are already
// relative to the project.
func toRelativeURI(path, base string) string {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
