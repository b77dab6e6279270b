package callgraph

// Isolate returns a copy of text in which every edge leaving root has its
// arrow rewritten from "->" to "--". The tokenizer no longer recognizes those
// statements, so root can only ever appear as a callee. All other bytes are
// copied unchanged and text itself is not modified.
func Isolate(text []byte, root NodeID) ([]byte, int, error) {
	out := make([]byte, len(text))
	copy(out, text)

	neutralized := 0
	err := scan(text, func(s statement) bool {
		if s.kind == edgeStatement && s.edge.Caller == root {
			out[s.arrow] = '-'
			neutralized++
		}
		return true
	})
	if err != nil {
		return nil, 0, err
	}
	return out, neutralized, nil
}
