package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// CallGraphFormat indicates the call-graph text is missing grammar markers
	// where the producer is expected to emit them
	CallGraphFormat ErrorCode = "CALLGRAPH_FORMAT"
	// AbortNotFound indicates the abort entry has no declaration in the call graph
	AbortNotFound ErrorCode = "ABORT_NOT_FOUND"
	// SymbolNotFound indicates an exported symbol has no declaration in the call graph
	SymbolNotFound ErrorCode = "SYMBOL_NOT_FOUND"
	// ToolFailed indicates an external toolchain command exited unsuccessfully
	ToolFailed ErrorCode = "TOOL_FAILED"
	// ToolMissing indicates an external toolchain command is not installed
	ToolMissing ErrorCode = "TOOL_MISSING"
	// ConfigInvalid indicates a configuration value failed validation
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// ManifestInvalid indicates Cargo.toml could not be read or parsed
	ManifestInvalid ErrorCode = "MANIFEST_INVALID"
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

// InstallMethod represents methods for installing tools
type InstallMethod string

const (
	// Rustup installation via rustup
	Rustup InstallMethod = "rustup"
	// Brew installation via Homebrew
	Brew InstallMethod = "brew"
	// Apt installation via apt
	Apt InstallMethod = "apt"
	// Manual installation
	Manual InstallMethod = "manual"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType   `json:"type"`
	Command     string          `json:"command,omitempty"`
	Safe        bool            `json:"safe,omitempty"`
	Description string          `json:"description,omitempty"`
	URL         string          `json:"url,omitempty"`
	Tool        string          `json:"tool,omitempty"`
	Methods     []InstallMethod `json:"methods,omitempty"`
}

// Error represents a panic-list error with code, message, and suggestions
type Error struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// NewError creates a new Error. When suggestedFixes is nil the defaults
// registered for the code in ErrorActions are used.
func NewError(code ErrorCode, message string, cause error, suggestedFixes []FixAction) *Error {
	if suggestedFixes == nil {
		suggestedFixes = GetSuggestedFixes(code)
	}
	return &Error{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes,
	}
}

// Errorf creates a new Error with a formatted message and no cause.
func Errorf(code ErrorCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...), nil, nil)
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

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	AbortNotFound: {
		{
			Type:        RunCommand,
			Command:     "panic-list --only-core=false --should-clean ${package}",
			Safe:        true,
			Description: "Rebuild with std so the unwind entry is linked into the merged module",
		},
		{
			Type:        RunCommand,
			Command:     "panic-list --abort-symbol <name> ${package}",
			Safe:        true,
			Description: "Point the analysis at the abort entry your target uses",
		},
	},
	CallGraphFormat: {
		{
			Type:        RunCommand,
			Command:     "opt --version",
			Safe:        true,
			Description: "Check that opt comes from the same LLVM release as rustc",
		},
	},
	ToolMissing: {
		{
			Type:        InstallTool,
			Tool:        "llvm-tools",
			Methods:     []InstallMethod{Rustup, Brew, Apt},
			Description: "Install llvm-nm, llvm-lto and opt",
		},
		{
			Type:        RunCommand,
			Command:     "rustup toolchain install nightly --component rust-src",
			Safe:        true,
			Description: "Install the nightly toolchain used for -Z build-std",
		},
	},
	ManifestInvalid: {
		{
			Type:        RunCommand,
			Command:     "cargo metadata --no-deps",
			Safe:        true,
			Description: "Validate Cargo.toml",
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

// HasCode reports whether err, or any error it wraps, is an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or InternalError.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return InternalError
}
