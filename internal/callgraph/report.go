package callgraph

import (
	"bytes"
	"io"
	"strings"
)

// indentUnit is written once per depth level in the text report.
const indentUnit = "  "

// Line is one entry of the report: a symbol and how deep it sits in the
// chain. Exported functions have depth 0 and the abort entry, when reached,
// is the deepest line of its block.
type Line struct {
	Depth    int    `json:"depth" yaml:"depth"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Mangled  string `json:"mangled,omitempty" yaml:"mangled,omitempty"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
}

// Report is the result of one analysis. An empty Lines slice means no
// exported function reaches the abort entry within the depth budget.
type Report struct {
	Root     string   `json:"root" yaml:"root"`
	RootNode NodeID   `json:"rootNode" yaml:"rootNode"`
	MaxDepth int      `json:"maxDepth" yaml:"maxDepth"`
	Exported int      `json:"exported" yaml:"exported"`
	TopLevel int      `json:"topLevel" yaml:"topLevel"`
	Missing  []string `json:"missing,omitempty" yaml:"missing,omitempty"`
	Lines    []Line   `json:"lines" yaml:"lines"`
}

// Empty reports whether no chain was found.
func (r *Report) Empty() bool {
	return len(r.Lines) == 0
}

// Chains returns the number of exported entries in the report.
func (r *Report) Chains() int {
	n := 0
	for _, l := range r.Lines {
		if l.Depth == 0 {
			n++
		}
	}
	return n
}

// WriteText writes one line per entry, indented two spaces per depth level.
// An annotated entry carries its definition site after the name.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	for _, l := range r.Lines {
		b.WriteString(strings.Repeat(indentUnit, l.Depth))
		b.WriteString(l.Symbol)
		if l.Location != "" {
			b.WriteString("  (")
			b.WriteString(l.Location)
			b.WriteByte(')')
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Text returns the text rendering of the report.
func (r *Report) Text() []byte {
	var buf bytes.Buffer
	_ = r.WriteText(&buf)
	return buf.Bytes()
}
