// Package sources maps the exported functions of a report back to where they
// are defined in the crate's Rust sources.
package sources

import (
	"fmt"
	"sort"

	"panic-list/internal/callgraph"
)

// SourceDir is the directory under the cargo root that is indexed.
const SourceDir = "src"

// Location is a function definition site. Path is relative to the cargo root
// and uses forward slashes; Line is 1-based.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.Path, l.Line)
}

// Index maps a function name to every place a function of that name is
// defined.
type Index map[string][]Location

// Add records a definition.
func (idx Index) Add(name string, loc Location) {
	idx[name] = append(idx[name], loc)
}

// Lookup returns the first definition of name in path order, or false when
// there is none.
func (idx Index) Lookup(name string) (Location, bool) {
	locs := idx[name]
	if len(locs) == 0 {
		return Location{}, false
	}
	sort.Slice(locs, func(i, j int) bool {
		if locs[i].Path != locs[j].Path {
			return locs[i].Path < locs[j].Path
		}
		return locs[i].Line < locs[j].Line
	})
	return locs[0], true
}

// Annotate sets Location on the report's depth-0 lines whose demangled name
// ends in a function found in idx. It returns how many lines were annotated.
func Annotate(report *callgraph.Report, idx Index) int {
	if len(idx) == 0 {
		return 0
	}
	n := 0
	for i := range report.Lines {
		line := &report.Lines[i]
		if line.Depth != 0 {
			continue
		}
		label := line.Symbol
		if line.Mangled != "" {
			label = line.Mangled
		}
		if loc, ok := idx.Lookup(callgraph.LastSegment(callgraph.Demangle(label))); ok {
			line.Location = loc.String()
			n++
		}
	}
	return n
}
