package callgraph

import (
	"log/slog"

	"panic-list/internal/errors"
	"panic-list/internal/slogutil"
)

// DefaultMaxDepth bounds the backward search when no depth is configured.
const DefaultMaxDepth = 10

// Options controls one analysis pass.
type Options struct {
	// MaxDepth is the largest number of backward hops taken from the abort
	// entry before a branch is abandoned.
	MaxDepth int
	// AbortSymbol is the label of the node every chain must end in.
	AbortSymbol string
	// Demangle decodes symbol labels before they are written to the report.
	Demangle bool
	Logger   *slog.Logger
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		MaxDepth:    DefaultMaxDepth,
		AbortSymbol: DefaultAbortSymbol,
	}
}

// Analyze resolves the abort entry and the exported symbols in text, isolates
// the abort node and walks backward from it.
//
// The only fatal conditions are a missing abort entry and malformed call-graph
// text. Exported names that are not in the graph are listed in
// Report.Missing. The same inputs always produce the same report.
func Analyze(text []byte, exported []string, opts Options) (*Report, error) {
	if opts.MaxDepth < 0 {
		return nil, errors.Errorf(errors.ConfigInvalid, "recursive depth must not be negative, got %d", opts.MaxDepth)
	}
	if opts.AbortSymbol == "" {
		opts.AbortSymbol = DefaultAbortSymbol
	}
	logger := opts.Logger
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}

	loc, err := NewLocator(text)
	if err != nil {
		return nil, err
	}
	root, err := loc.Root(opts.AbortSymbol)
	if err != nil {
		return nil, err
	}
	logger.Info("Generating the panic list",
		"root", root.Label,
		"node", string(root.ID),
		"line", root.Line,
		"labels", loc.Len(),
	)

	topLevel, missing := ResolveTopLevel(loc, exported, root.ID)
	if len(missing) > 0 {
		logger.Debug("Exported symbols not present in call graph",
			"missing", len(missing),
			"exported", len(exported),
		)
	}

	sanitized, neutralized, err := Isolate(text, root.ID)
	if err != nil {
		return nil, err
	}
	g, err := NewGraph(sanitized)
	if err != nil {
		return nil, err
	}
	logger.Debug("Call graph indexed",
		"nodes", g.Nodes(),
		"edges", g.EdgeCount(),
		"rootEdgesRemoved", neutralized,
	)

	w := &walker{graph: g, topLevel: topLevel, name: identity}
	if opts.Demangle {
		w.name = Demangle
	}
	logger.Info("Walking call graph", "maxDepth", opts.MaxDepth, "topLevel", len(topLevel))
	w.walk(root.ID, opts.MaxDepth)

	report := &Report{
		Root:     w.name(root.Label),
		RootNode: root.ID,
		MaxDepth: opts.MaxDepth,
		Exported: len(exported),
		TopLevel: len(topLevel),
		Missing:  missing,
		Lines:    w.lines,
	}
	if report.Lines == nil {
		report.Lines = []Line{}
	}
	logger.Info("Analysis complete", "chains", report.Chains(), "lines", len(report.Lines))
	return report, nil
}
