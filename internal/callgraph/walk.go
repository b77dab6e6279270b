package callgraph

// walker runs the depth-bounded backward search from the abort node toward
// exported functions.
//
// There is no memoization across siblings. A node reachable along several
// branches is searched once per branch, so the cost grows with fan-in to the
// power of the depth budget. The budget is the only termination guarantee for
// cycles that do not pass through the isolated root.
type walker struct {
	graph    *Graph
	topLevel map[NodeID]struct{}
	name     func(label string) string
	lines    []Line
}

// walk returns the depth at which node was found to connect to an exported
// function, or 0 when no exported caller lies within budget hops.
//
// An exported node is emitted unindented and stops the search along that
// branch. Any other node is emitted once, after all of its callers, indented
// by the deepest depth any caller returned, so that only the deepest chain
// through it is represented.
func (w *walker) walk(node NodeID, budget int) int {
	if _, ok := w.topLevel[node]; ok {
		w.emit(node, 0)
		return 1
	}
	if budget == 0 {
		return 0
	}

	deepest := 0
	for _, caller := range w.graph.Callers(node) {
		if caller == node {
			continue
		}
		if d := w.walk(caller, budget-1); d > deepest {
			deepest = d
		}
	}
	if deepest == 0 {
		return 0
	}

	w.emit(node, deepest)
	return deepest + 1
}

func (w *walker) emit(node NodeID, depth int) {
	label := w.graph.Label(node)
	l := Line{Depth: depth, Symbol: w.name(label)}
	if l.Symbol != label {
		l.Mangled = label
	}
	w.lines = append(w.lines, l)
}
