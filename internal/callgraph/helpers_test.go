package callgraph

import (
	stderrors "errors"
	"fmt"
	"strings"

	"panic-list/internal/errors"
)

// nodeID gives the i-th node of a generated graph an LLVM-looking token.
func nodeID(i int) NodeID {
	return NodeID(fmt.Sprintf("Node0x55d5d7d0%04x", 0xe000+i*0x90))
}

// dotGraph renders names as node declarations and edges as caller -> callee
// statements, in the layout opt emits. Edges refer to names by index.
func dotGraph(names []string, edges ...[2]int) []byte {
	var b strings.Builder
	b.WriteString("digraph \"Call graph: test.bc\" {\n")
	b.WriteString("\tlabel=\"Call graph: test.bc\";\n\n")
	for i, name := range names {
		fmt.Fprintf(&b, "\t%s [shape=record,label=\"{%s}\"];\n", nodeID(i), name)
		for _, e := range edges {
			if e[0] == i {
				fmt.Fprintf(&b, "\t%s -> %s;\n", nodeID(e[0]), nodeID(e[1]))
			}
		}
	}
	b.WriteString("}\n")
	return []byte(b.String())
}

// analyzeText runs Analyze with the given budget and returns the text report.
func analyzeText(text []byte, exported []string, budget int) (string, error) {
	opts := DefaultOptions()
	opts.MaxDepth = budget
	r, err := Analyze(text, exported, opts)
	if err != nil {
		return "", err
	}
	return string(r.Text()), nil
}

func asError(err error, target **errors.Error) bool {
	return stderrors.As(err, target)
}
