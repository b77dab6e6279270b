package callgraph

import (
	"bytes"
	"strings"
)

// ParseSymbols splits the newline-delimited output of
// `llvm-nm --format=just-symbols` into names. Blank lines are skipped,
// surrounding whitespace is trimmed and repeated names are kept once.
// A final line without a terminating newline is still read, and lines
// have no length limit.
func ParseSymbols(data []byte) []string {
	var names []string
	seen := make(map[string]bool)

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		name := strings.TrimSpace(string(line))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// ResolveTopLevel maps exported names to nodes. Names with no declaration in
// the call graph are returned in missing and otherwise ignored; a library may
// export symbols the merged module never materialized. The root node is
// never part of the result, even when the abort entry itself is exported.
func ResolveTopLevel(loc *Locator, names []string, root NodeID) (map[NodeID]struct{}, []string) {
	topLevel := make(map[NodeID]struct{}, len(names))
	var missing []string
	for _, name := range names {
		d, ok := loc.Locate(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		if d.ID == root {
			continue
		}
		topLevel[d.ID] = struct{}{}
	}
	return topLevel, missing
}
