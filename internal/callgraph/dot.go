// Package callgraph reads the call graph that LLVM's `opt -passes=dot-callgraph`
// writes and reconstructs the call chains through which exported functions can
// reach an abort entry point.
//
// The text is never turned into a general-purpose graph. Node declarations and
// edges are discovered by tokenizing the buffer one statement per line:
//
//	Node0x55d5d7d0e6a0 [shape=record,label="{_ZN4core9panicking5panic17h..E}"];
//	Node0x55d5d7d0e6a0 -> Node0x55d5d7d0e740;
//
// Anything else (graph header, graph label, closing brace, neutralized edges)
// is skipped.
package callgraph

import (
	"bytes"
	"fmt"
	"strings"

	"panic-list/internal/errors"
)

const (
	arrowMarker    = "->"
	labelAttribute = "label"
)

// NodeID is the opaque token addressing one function in the call graph.
type NodeID string

// Declaration binds a node to its symbol label.
type Declaration struct {
	ID    NodeID
	Label string
	Line  int
}

// Edge is a caller -> callee statement.
type Edge struct {
	Caller NodeID
	Callee NodeID
	Line   int
}

type statementKind int

const (
	otherStatement statementKind = iota
	nodeStatement
	edgeStatement
)

type statement struct {
	kind  statementKind
	decl  Declaration
	edge  Edge
	arrow int // offset of the arrow's '>' in the scanned buffer
}

// DOT keywords that can start a line followed by an attribute list without
// declaring a node.
var dotKeywords = map[string]bool{
	"digraph":  true,
	"graph":    true,
	"subgraph": true,
	"strict":   true,
	"node":     true,
	"edge":     true,
}

// scan tokenizes text line by line and calls visit for every node declaration
// and edge in order. visit returns false to stop early.
func scan(text []byte, visit func(statement) bool) error {
	lineNo := 0
	for offset := 0; offset < len(text); {
		end := bytes.IndexByte(text[offset:], '\n')
		if end < 0 {
			end = len(text)
		} else {
			end += offset
		}
		lineNo++

		stmt, err := parseStatement(text[offset:end], offset, lineNo)
		if err != nil {
			return err
		}
		if stmt.kind != otherStatement && !visit(stmt) {
			return nil
		}
		offset = end + 1
	}
	return nil
}

// Declarations returns every node declaration in text order.
func Declarations(text []byte) ([]Declaration, error) {
	var decls []Declaration
	err := scan(text, func(s statement) bool {
		if s.kind == nodeStatement {
			decls = append(decls, s.decl)
		}
		return true
	})
	return decls, err
}

// Edges returns every recognizable edge in text order.
func Edges(text []byte) ([]Edge, error) {
	var edges []Edge
	err := scan(text, func(s statement) bool {
		if s.kind == edgeStatement {
			edges = append(edges, s.edge)
		}
		return true
	})
	return edges, err
}

func parseStatement(line []byte, base, lineNo int) (statement, error) {
	i := skipSpace(line, 0)
	start := i
	i = scanIdent(line, i)
	if i == start {
		return statement{}, nil
	}
	id := NodeID(line[start:i])
	if dotKeywords[string(id)] {
		return statement{}, nil
	}

	j := skipSpace(line, i)
	switch {
	case j < len(line) && line[j] == '[':
		attrs, _, err := parseAttributes(line, j)
		if err != nil {
			return statement{}, formatError(lineNo, err.Error())
		}
		raw, ok := attrs[labelAttribute]
		if !ok {
			return statement{}, formatError(lineNo, fmt.Sprintf("node %s is declared without a label", id))
		}
		label, err := recordLabel(raw)
		if err != nil {
			return statement{}, formatError(lineNo, err.Error())
		}
		return statement{
			kind: nodeStatement,
			decl: Declaration{ID: id, Label: label, Line: lineNo},
		}, nil

	case bytes.HasPrefix(line[j:], []byte(arrowMarker)):
		k := skipSpace(line, j+len(arrowMarker))
		calleeStart := k
		k = scanIdent(line, k)
		if k == calleeStart {
			return statement{}, formatError(lineNo, fmt.Sprintf("edge from %s has no callee", id))
		}
		return statement{
			kind:  edgeStatement,
			edge:  Edge{Caller: id, Callee: NodeID(line[calleeStart:k]), Line: lineNo},
			arrow: base + j + 1,
		}, nil
	}

	return statement{}, nil
}

// parseAttributes parses a `[key=value, ...]` list starting at line[start] == '['.
// Quoted values keep their escapes; recordLabel removes them.
func parseAttributes(line []byte, start int) (map[string]string, int, error) {
	attrs := make(map[string]string)
	i := start + 1
	for {
		for i < len(line) && (isSpace(line[i]) || line[i] == ',' || line[i] == ';') {
			i++
		}
		if i >= len(line) {
			return nil, 0, fmt.Errorf("unterminated attribute list")
		}
		if line[i] == ']' {
			return attrs, i + 1, nil
		}

		keyStart := i
		i = scanIdent(line, i)
		if i == keyStart {
			return nil, 0, fmt.Errorf("unexpected %q in attribute list", line[i])
		}
		key := string(line[keyStart:i])

		i = skipSpace(line, i)
		if i >= len(line) || line[i] != '=' {
			attrs[key] = ""
			continue
		}
		i = skipSpace(line, i+1)

		if i < len(line) && line[i] == '"' {
			end := closingQuote(line, i+1)
			if end < 0 {
				return nil, 0, fmt.Errorf("unterminated string in attribute %s", key)
			}
			attrs[key] = string(line[i+1 : end])
			i = end + 1
			continue
		}

		valueStart := i
		for i < len(line) && !isSpace(line[i]) && line[i] != ',' && line[i] != ';' && line[i] != ']' {
			i++
		}
		attrs[key] = string(line[valueStart:i])
	}
}

// recordLabel extracts the symbol name from a record label `{name}`.
func recordLabel(raw string) (string, error) {
	if len(raw) < 2 || raw[0] != '{' || raw[len(raw)-1] != '}' {
		return "", fmt.Errorf("label %q is not delimited by { }", raw)
	}
	inner := raw[1 : len(raw)-1]
	if trailingBackslashes(inner)%2 == 1 {
		return "", fmt.Errorf("label %q has an escaped closing delimiter", raw)
	}
	label := unescape(inner)
	if label == "" {
		return "", fmt.Errorf("label %q is empty", raw)
	}
	return label, nil
}

func closingQuote(line []byte, from int) int {
	for i := from; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

func unescape(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func trailingBackslashes(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n
}

func skipSpace(line []byte, i int) int {
	for i < len(line) && isSpace(line[i]) {
		i++
	}
	return i
}

func scanIdent(line []byte, i int) int {
	for i < len(line) && isIdentByte(line[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r'
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '.' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

func formatError(line int, msg string) error {
	return errors.NewError(errors.CallGraphFormat,
		fmt.Sprintf("call graph line %d: %s", line, msg), nil, nil).
		WithDetails(map[string]interface{}{"line": line})
}
