package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"panic-list/internal/errors"
)

// printError writes a diagnostic for a failed command: the message, any
// details the error carries and its suggested fixes.
func printError(w io.Writer, err error) {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}

	fmt.Fprintf(w, "Error [%s]: %s\n", e.Code, e.Message)
	if cause := stderrors.Unwrap(e); cause != nil {
		fmt.Fprintf(w, "  cause: %v\n", cause)
	}

	if details, ok := e.Details.(map[string]interface{}); ok && len(details) > 0 {
		keys := make([]string, 0, len(details))
		for k := range details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := fmt.Sprint(details[k])
			if strings.Contains(v, "\n") {
				fmt.Fprintf(w, "  %s:\n", k)
				for _, line := range strings.Split(strings.TrimRight(v, "\n"), "\n") {
					fmt.Fprintf(w, "    %s\n", line)
				}
				continue
			}
			fmt.Fprintf(w, "  %s: %s\n", k, v)
		}
	}

	if len(e.SuggestedFixes) > 0 {
		fmt.Fprintln(w, "\nSuggested fixes:")
		for _, fix := range e.SuggestedFixes {
			switch {
			case fix.Command != "":
				fmt.Fprintf(w, "  - %s\n      %s\n", fix.Description, fix.Command)
			case fix.Tool != "":
				methods := make([]string, len(fix.Methods))
				for i, m := range fix.Methods {
					methods[i] = string(m)
				}
				fmt.Fprintf(w, "  - %s (%s via %s)\n", fix.Description, fix.Tool, strings.Join(methods, ", "))
			default:
				fmt.Fprintf(w, "  - %s\n", fix.Description)
			}
		}
	}
}
