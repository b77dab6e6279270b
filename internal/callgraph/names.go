package callgraph

import (
	"regexp"
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// rustc appends a 16 hex digit crate-disambiguation hash to legacy symbols.
var legacyHash = regexp.MustCompile(`::h[0-9a-f]{16}$`)

// Demangle decodes Rust (legacy and v0) and Itanium C++ symbols and drops the
// trailing rustc hash segment. Labels that are not mangled are returned as is.
func Demangle(label string) string {
	name := demangle.Filter(label)
	return legacyHash.ReplaceAllString(name, "")
}

// LastSegment returns the final path segment of a demangled name, ignoring a
// trailing generic argument list: `a::b::c<T>` yields `c`.
func LastSegment(name string) string {
	name = trimGenerics(name)
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	return name
}

func trimGenerics(name string) string {
	if !strings.HasSuffix(name, ">") {
		return name
	}
	depth := 0
	for i := len(name) - 1; i >= 0; i-- {
		switch name[i] {
		case '>':
			depth++
		case '<':
			depth--
			if depth == 0 {
				return name[:i]
			}
		}
	}
	return name
}

func identity(label string) string {
	return label
}
