//go:build cgo

package sources

import (
	"context"
	"testing"

	"panic-list/internal/callgraph"
	"panic-list/internal/testutil"
)

func TestBuildIndexFixture(t *testing.T) {
	fixture := testutil.LoadFixture(t, "mangled")

	idx, err := NewIndexer().BuildIndex(context.Background(), fixture.Root)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	tests := map[string]string{
		"decode": "src/lib.rs:6",
		"parse":  "src/lib.rs:11",
		"len":    "src/util.rs:1",
	}
	for name, want := range tests {
		loc, ok := idx.Lookup(name)
		if !ok {
			t.Errorf("%s not indexed", name)
			continue
		}
		if loc.String() != want {
			t.Errorf("%s at %s, want %s", name, loc, want)
		}
	}
}

func TestBuildIndexMissingSourceDir(t *testing.T) {
	if _, err := NewIndexer().BuildIndex(context.Background(), t.TempDir()); err == nil {
		t.Error("expected an error for a cargo root without src/")
	}
}

func TestAnnotateFixtureReport(t *testing.T) {
	fixture := testutil.LoadFixture(t, "mangled")
	opts := callgraph.DefaultOptions()
	opts.Demangle = true

	report, err := callgraph.Analyze(fixture.CallGraph(t), callgraph.ParseSymbols(fixture.Symbols(t)), opts)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	idx, err := NewIndexer().BuildIndex(context.Background(), fixture.Root)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	if n := Annotate(report, idx); n != 2 {
		t.Fatalf("Annotate = %d, want 2", n)
	}
	got := map[string]string{}
	for _, l := range report.Lines {
		if l.Depth == 0 {
			got[l.Symbol] = l.Location
		}
	}
	if got["mylib::decode"] != "src/lib.rs:6" || got["mylib::parse"] != "src/lib.rs:11" {
		t.Errorf("locations = %v", got)
	}
}

func TestIsAvailable(t *testing.T) {
	if !IsAvailable() {
		t.Error("IsAvailable should be true with cgo")
	}
}
