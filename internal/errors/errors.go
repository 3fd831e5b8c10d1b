package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// AnalyzerUnavailable indicates the analyzer binary could not be started
	AnalyzerUnavailable ErrorCode = "ANALYZER_UNAVAILABLE"
	// AnalyzerFailed indicates the analyzer exited without producing a report
	AnalyzerFailed ErrorCode = "ANALYZER_FAILED"
	// FixerFailed indicates the auto-fix pass or a rewriter failed
	FixerFailed ErrorCode = "FIXER_FAILED"
	// Timeout indicates an external command timed out
	Timeout ErrorCode = "TIMEOUT"
	// NotAGitRepository indicates the project is not under git
	NotAGitRepository ErrorCode = "NOT_A_GIT_REPOSITORY"
	// RevisionNotFound indicates a revision could not be resolved
	RevisionNotFound ErrorCode = "REVISION_NOT_FOUND"
	// NotACargoProject indicates no Cargo.toml was found
	NotACargoProject ErrorCode = "NOT_A_CARGO_PROJECT"
	// FileUnreadable indicates a source file could not be read
	FileUnreadable ErrorCode = "FILE_UNREADABLE"
	// ConfigInvalid indicates the configuration failed validation
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// StorageFailed indicates the dataset store could not be used
	StorageFailed ErrorCode = "STORAGE_FAILED"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
	// InstallTool suggests installing a tool
	InstallTool FixActionType = "install-tool"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
	Tool        string        `json:"tool,omitempty"`
}

// Error carries a stable code, a message and suggested fixes
type Error struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a new Error. Suggested fixes default to ErrorActions for the code.
func New(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// CodeOf returns the code of the first Error in err's chain, or InternalError.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return InternalError
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Code == code
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	AnalyzerUnavailable: {
		{
			Type:        InstallTool,
			Command:     "rustup component add clippy",
			Safe:        true,
			Description: "Install the clippy component",
			Tool:        "cargo-clippy",
		},
		{
			Type:        RunCommand,
			Command:     "rustdiag doctor",
			Safe:        true,
			Description: "Check tool availability",
		},
	},
	AnalyzerFailed: {
		{
			Type:        RunCommand,
			Command:     "cargo clippy",
			Safe:        true,
			Description: "Run clippy directly to see why it fails",
		},
	},
	NotAGitRepository: {
		{
			Type:        RunCommand,
			Command:     "git init",
			Safe:        true,
			Description: "Initialize a git repository",
		},
	},
	NotACargoProject: {
		{
			Type:        OpenDocs,
			URL:         "https://doc.rust-lang.org/cargo/reference/manifest.html",
			Description: "Run rustdiag from a directory containing Cargo.toml",
		},
	},
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "rustdiag rules",
			Safe:        true,
			Description: "Show the effective configuration and rule set",
		},
	},
	Timeout: {
		{
			Type:        RunCommand,
			Command:     "RUSTDIAG_ANALYZER_TIMEOUTMS=600000 rustdiag ${retry_command}",
			Safe:        true,
			Description: "Retry with a longer analyzer timeout",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
