package callgraph

// Graph is the inbound-edge view of a sanitized call-graph text.
type Graph struct {
	callers map[NodeID][]NodeID
	labels  map[NodeID]string
	edges   int
}

// NewGraph tokenizes text once and indexes, for every callee, its distinct
// callers in the order their edges appear. Repeated edges between the same
// pair (one per call site) are recorded once.
func NewGraph(text []byte) (*Graph, error) {
	g := &Graph{
		callers: make(map[NodeID][]NodeID),
		labels:  make(map[NodeID]string),
	}
	seen := make(map[Edge]bool)

	err := scan(text, func(s statement) bool {
		switch s.kind {
		case nodeStatement:
			if _, ok := g.labels[s.decl.ID]; !ok {
				g.labels[s.decl.ID] = s.decl.Label
			}
		case edgeStatement:
			g.edges++
			key := Edge{Caller: s.edge.Caller, Callee: s.edge.Callee}
			if seen[key] {
				return true
			}
			seen[key] = true
			g.callers[s.edge.Callee] = append(g.callers[s.edge.Callee], s.edge.Caller)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Callers returns the distinct callers of node.
func (g *Graph) Callers(node NodeID) []NodeID {
	return g.callers[node]
}

// Label returns node's symbol label, falling back to the node token itself
// when the node was referenced by an edge but never declared.
func (g *Graph) Label(node NodeID) string {
	if l, ok := g.labels[node]; ok {
		return l
	}
	return string(node)
}

// Nodes returns the number of declared nodes.
func (g *Graph) Nodes() int {
	return len(g.labels)
}

// EdgeCount returns the number of edge statements, duplicates included.
func (g *Graph) EdgeCount() int {
	return g.edges
}
