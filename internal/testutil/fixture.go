// Package testutil provides testing utilities for golden tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

const (
	callGraphFile = "callgraph.dot"
	symbolsFile   = "symbols.txt"
)

// FixtureContext holds information about a loaded fixture.
type FixtureContext struct {
	// Name is the fixture directory name (e.g., "chain", "mangled")
	Name string

	// Root is the absolute path to the fixture directory
	Root string

	// CallGraphPath is the path to the dot call graph
	CallGraphPath string

	// SymbolsPath is the path to the exported symbol list
	SymbolsPath string

	// ExpectedDir is the path to the expected/ directory
	ExpectedDir string
}

// LoadFixture loads a call graph fixture, failing the test on error.
func LoadFixture(t *testing.T, name string) *FixtureContext {
	t.Helper()

	fixtureDir := filepath.Join(getFixturesRoot(t), name)
	if _, err := os.Stat(fixtureDir); os.IsNotExist(err) {
		t.Fatalf("Fixture directory not found: %s", fixtureDir)
	}

	graphPath := filepath.Join(fixtureDir, callGraphFile)
	if _, err := os.Stat(graphPath); os.IsNotExist(err) {
		t.Fatalf("Call graph not found: %s", graphPath)
	}

	return &FixtureContext{
		Name:          name,
		Root:          fixtureDir,
		CallGraphPath: graphPath,
		SymbolsPath:   filepath.Join(fixtureDir, symbolsFile),
		ExpectedDir:   filepath.Join(fixtureDir, "expected"),
	}
}

// CallGraph returns the fixture's call graph text.
func (f *FixtureContext) CallGraph(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(f.CallGraphPath)
	if err != nil {
		t.Fatalf("Failed to read call graph: %v", err)
	}
	return data
}

// Symbols returns the fixture's exported symbol list. A fixture without one
// exports nothing.
func (f *FixtureContext) Symbols(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(f.SymbolsPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("Failed to read symbols: %v", err)
	}
	return data
}

// ExpectedPath returns the path to a golden file within the fixture.
// The name includes its extension.
func (f *FixtureContext) ExpectedPath(name string) string {
	return filepath.Join(f.ExpectedDir, name)
}

// getFixturesRoot returns the absolute path to testdata/fixtures/.
func getFixturesRoot(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get caller information")
	}

	// Navigate from internal/testutil to project root
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	fixturesRoot := filepath.Join(projectRoot, "testdata", "fixtures")

	if _, err := os.Stat(fixturesRoot); os.IsNotExist(err) {
		t.Fatalf("Fixtures root not found: %s", fixturesRoot)
	}

	return fixturesRoot
}

// AvailableFixtures returns the names of fixtures that carry a call graph.
func AvailableFixtures(t *testing.T) []string {
	t.Helper()

	root := getFixturesRoot(t)
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("Failed to read fixtures directory: %v", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() || isHiddenDir(entry.Name()) {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, entry.Name(), callGraphFile)); err == nil {
			names = append(names, entry.Name())
		}
	}
	return names
}

func isHiddenDir(name string) bool {
	return len(name) > 0 && name[0] == '.'
}
