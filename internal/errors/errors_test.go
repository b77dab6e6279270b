package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewError(t *testing.T) {
	cause := errors.New("underlying error")
	fixes := []FixAction{{Type: RunCommand, Command: "opt --version"}}

	err := NewError(CallGraphFormat, "node declaration without label", cause, fixes)

	if err.Code != CallGraphFormat {
		t.Errorf("Code = %v, want %v", err.Code, CallGraphFormat)
	}
	if err.Message != "node declaration without label" {
		t.Errorf("Message = %q, want %q", err.Message, "node declaration without label")
	}
	if len(err.SuggestedFixes) != 1 {
		t.Errorf("len(SuggestedFixes) = %d, want 1", len(err.SuggestedFixes))
	}
}

func TestNewError_DefaultFixes(t *testing.T) {
	err := NewError(ToolMissing, "llvm-nm not found", nil, nil)
	if len(err.SuggestedFixes) != len(ErrorActions[ToolMissing]) {
		t.Errorf("len(SuggestedFixes) = %d, want %d", len(err.SuggestedFixes), len(ErrorActions[ToolMissing]))
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      ToolFailed,
			message:   "opt exited with status 1",
			cause:     errors.New("exit status 1"),
			wantParts: []string{"TOOL_FAILED", "opt exited with status 1", "exit status 1"},
		},
		{
			name:      "without cause",
			code:      AbortNotFound,
			message:   "rust_begin_unwind not found in call graph",
			cause:     nil,
			wantParts: []string{"ABORT_NOT_FOUND", "rust_begin_unwind not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewError(tt.code, tt.message, tt.cause, nil)
			got := err.Error()

			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewError(InternalError, "something went wrong", cause, nil)

	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}

	errNoCause := Errorf(ConfigInvalid, "depth %d is negative", -1)
	if errNoCause.Unwrap() != nil {
		t.Errorf("Unwrap() on error without cause should return nil")
	}
	if errNoCause.Message != "depth -1 is negative" {
		t.Errorf("Message = %q", errNoCause.Message)
	}
}

func TestError_WithDetails(t *testing.T) {
	err := NewError(CallGraphFormat, "bad label", nil, nil)
	details := map[string]int{"line": 12}

	result := err.WithDetails(details)

	if result != err {
		t.Error("WithDetails should return the same error for chaining")
	}
	if err.Details == nil {
		t.Error("Details should be set")
	}
}

func TestGetSuggestedFixes(t *testing.T) {
	tests := []struct {
		code    ErrorCode
		wantNil bool
		wantLen int
	}{
		{AbortNotFound, false, 2},
		{CallGraphFormat, false, 1},
		{ToolMissing, false, 2},
		{ManifestInvalid, false, 1},
		{SymbolNotFound, true, 0},
		{InternalError, true, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			fixes := GetSuggestedFixes(tt.code)

			if tt.wantNil && fixes != nil {
				t.Errorf("GetSuggestedFixes(%v) = %v, want nil", tt.code, fixes)
			}
			if !tt.wantNil && len(fixes) != tt.wantLen {
				t.Errorf("GetSuggestedFixes(%v) len = %d, want %d", tt.code, len(fixes), tt.wantLen)
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	base := NewError(AbortNotFound, "missing", nil, nil)
	wrapped := fmt.Errorf("analyze: %w", base)

	if !HasCode(wrapped, AbortNotFound) {
		t.Error("HasCode should see through fmt.Errorf wrapping")
	}
	if HasCode(wrapped, CallGraphFormat) {
		t.Error("HasCode matched the wrong code")
	}
	if HasCode(errors.New("plain"), AbortNotFound) {
		t.Error("HasCode matched a plain error")
	}
	if CodeOf(wrapped) != AbortNotFound {
		t.Errorf("CodeOf = %v, want %v", CodeOf(wrapped), AbortNotFound)
	}
	if CodeOf(errors.New("plain")) != InternalError {
		t.Errorf("CodeOf(plain) = %v, want %v", CodeOf(errors.New("plain")), InternalError)
	}
}

func TestErrorCodes(t *testing.T) {
	codes := []ErrorCode{
		CallGraphFormat,
		AbortNotFound,
		SymbolNotFound,
		ToolFailed,
		ToolMissing,
		ConfigInvalid,
		ManifestInvalid,
		InternalError,
	}

	seen := make(map[ErrorCode]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %v", code)
		}
		seen[code] = true

		if string(code) == "" {
			t.Error("Error code should not be empty")
		}
	}
}
