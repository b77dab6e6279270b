package callgraph

import (
	"fmt"

	"panic-list/internal/errors"
)

// DefaultAbortSymbol is the unwind entry every Rust panic funnels into.
const DefaultAbortSymbol = "rust_begin_unwind"

// Locator resolves symbol names to node declarations.
//
// Only the first declaration of a label is kept. A symbol declared twice
// resolves to its earlier node and the later one is never consulted.
type Locator struct {
	byLabel map[string]Declaration
}

// NewLocator indexes every node declaration in text.
func NewLocator(text []byte) (*Locator, error) {
	l := &Locator{
		byLabel: make(map[string]Declaration),
	}
	err := scan(text, func(s statement) bool {
		if s.kind != nodeStatement {
			return true
		}
		if _, ok := l.byLabel[s.decl.Label]; !ok {
			l.byLabel[s.decl.Label] = s.decl
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Locate returns the declaration whose label is exactly name.
func (l *Locator) Locate(name string) (Declaration, bool) {
	d, ok := l.byLabel[name]
	return d, ok
}

// Len returns the number of distinct labels.
func (l *Locator) Len() int {
	return len(l.byLabel)
}

// Root resolves the abort entry. Its absence makes the analysis impossible.
func (l *Locator) Root(abortSymbol string) (Declaration, error) {
	d, ok := l.Locate(abortSymbol)
	if !ok {
		return Declaration{}, errors.NewError(errors.AbortNotFound,
			fmt.Sprintf("cannot find %s in the call graph", abortSymbol), nil, nil).
			WithDetails(map[string]interface{}{"symbol": abortSymbol})
	}
	return d, nil
}
