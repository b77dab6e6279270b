package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"panic-list/internal/errors"
	"panic-list/internal/history"
	"panic-list/internal/paths"
	"panic-list/internal/sources"
	"panic-list/internal/testutil"
	"panic-list/internal/toolchain"
)

// execute runs the root command with fresh flag state and returns what it
// wrote to stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func readExpected(t *testing.T, fixture *testutil.FixtureContext, name string) string {
	t.Helper()
	data, err := os.ReadFile(fixture.ExpectedPath(name))
	if err != nil {
		t.Fatalf("read expected %s: %v", name, err)
	}
	return string(data)
}

func TestAnalyzeCommand(t *testing.T) {
	tests := []struct {
		fixture  string
		extra    []string
		expected string
	}{
		{"chain", nil, "report.txt"},
		{"mangled", nil, "report.txt"},
		{"mangled", []string{"--demangle"}, "report.demangled.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.fixture+"/"+tt.expected, func(t *testing.T) {
			fixture := testutil.LoadFixture(t, tt.fixture)
			args := append([]string{"analyze", "-q",
				"--cargo-path", t.TempDir(),
				"--callgraph", fixture.CallGraphPath,
				"--symbols", fixture.SymbolsPath,
			}, tt.extra...)

			stdout, _, err := execute(t, args...)
			if err != nil {
				t.Fatalf("analyze: %v", err)
			}
			if want := readExpected(t, fixture, tt.expected); stdout != want {
				t.Errorf("stdout =\n%s\nwant\n%s", stdout, want)
			}
		})
	}
}

func TestAnalyzeCommandJSON(t *testing.T) {
	fixture := testutil.LoadFixture(t, "chain")
	stdout, _, err := execute(t, "analyze", "-q", "--format", "json",
		"--cargo-path", t.TempDir(),
		"--callgraph", fixture.CallGraphPath,
		"--symbols", fixture.SymbolsPath,
	)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	var want map[string]interface{}
	if err := json.Unmarshal([]byte(readExpected(t, fixture, "report.json")), &want); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("JSON report =\n%s\nwant\n%s", stdout, readExpected(t, fixture, "report.json"))
	}
}

func TestAnalyzeCommandOutputFile(t *testing.T) {
	fixture := testutil.LoadFixture(t, "chain")
	out := filepath.Join(t.TempDir(), "reports", "panics.txt")

	stdout, stderr, err := execute(t, "analyze", "-q", "-o", out,
		"--cargo-path", t.TempDir(),
		"--callgraph", fixture.CallGraphPath,
		"--symbols", fixture.SymbolsPath,
	)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if stdout != "" {
		t.Errorf("stdout should be empty with -o, got %q", stdout)
	}
	if !strings.Contains(stderr, "Wrote panic-list output: "+out) {
		t.Errorf("stderr = %q", stderr)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if want := readExpected(t, fixture, "report.txt"); string(data) != want {
		t.Errorf("file =\n%s\nwant\n%s", data, want)
	}
}

func TestAnalyzeCommandNoPanics(t *testing.T) {
	fixture := testutil.LoadFixture(t, "chain")
	stdout, stderr, err := execute(t, "analyze", "-q", "--recursive-depth", "1",
		"--cargo-path", t.TempDir(),
		"--callgraph", fixture.CallGraphPath,
		"--symbols", fixture.SymbolsPath,
	)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want empty", stdout)
	}
	if !strings.Contains(stderr, noPanicsMessage) {
		t.Errorf("stderr = %q, want the no-panics message", stderr)
	}
}

func TestAnalyzeCommandAbortMissing(t *testing.T) {
	fixture := testutil.LoadFixture(t, "chain")
	_, _, err := execute(t, "analyze", "-q", "--abort-symbol", "__rust_start_panic",
		"--cargo-path", t.TempDir(),
		"--callgraph", fixture.CallGraphPath,
		"--symbols", fixture.SymbolsPath,
	)
	if !errors.HasCode(err, errors.AbortNotFound) {
		t.Fatalf("error = %v, want %s", err, errors.AbortNotFound)
	}
}

func TestAnalyzeCommandInvalidFlags(t *testing.T) {
	fixture := testutil.LoadFixture(t, "chain")
	_, _, err := execute(t, "analyze", "-q", "--recursive-depth", "-2",
		"--cargo-path", t.TempDir(),
		"--callgraph", fixture.CallGraphPath,
	)
	if !errors.HasCode(err, errors.ConfigInvalid) {
		t.Fatalf("error = %v, want %s", err, errors.ConfigInvalid)
	}
}

func TestAnalyzeCommandAnnotate(t *testing.T) {
	fixture := testutil.LoadFixture(t, "mangled")
	stdout, _, err := execute(t, "analyze", "-q", "--demangle", "--annotate",
		"--cargo-path", fixture.Root,
		"--callgraph", fixture.CallGraphPath,
		"--symbols", fixture.SymbolsPath,
	)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if !sources.IsAvailable() {
		if want := readExpected(t, fixture, "report.demangled.txt"); stdout != want {
			t.Errorf("without cgo the report should be unannotated, got\n%s", stdout)
		}
		return
	}
	for _, want := range []string{"mylib::decode  (src/lib.rs:6)\n", "mylib::parse  (src/lib.rs:11)\n"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestAnalyzeCommandLogFile(t *testing.T) {
	fixture := testutil.LoadFixture(t, "chain")
	logPath := filepath.Join(t.TempDir(), "panic-list.log")

	_, stderr, err := execute(t, "analyze", "-q", "--log-file", logPath,
		"--cargo-path", t.TempDir(),
		"--callgraph", fixture.CallGraphPath,
		"--symbols", fixture.SymbolsPath,
	)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if strings.Contains(stderr, "[warn]") {
		t.Errorf("-q should silence the terminal, got %q", stderr)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	for _, want := range []string{"[warn] Exported symbols missing from the call graph | count=1", "[debug] Missing symbol | name=ghost_export code=SYMBOL_NOT_FOUND"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log file missing %q:\n%s", want, data)
		}
	}
}

func TestHistoryShowsAnnotatedReport(t *testing.T) {
	fixture := testutil.LoadFixture(t, "mangled")
	stateRoot := t.TempDir()
	db := filepath.Join(stateRoot, "history.db")
	t.Setenv("PANIC_LIST_HISTORY_PATH", db)

	emitted, _, err := execute(t, "analyze", "-q", "--demangle", "--annotate", "--record",
		"--cargo-path", fixture.Root,
		"--callgraph", fixture.CallGraphPath,
		"--symbols", fixture.SymbolsPath,
	)
	if err != nil {
		t.Fatalf("analyze --record: %v", err)
	}

	store, err := history.Open(db, nil)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	runs, err := store.List(context.Background(), 1)
	_ = store.Close()
	if err != nil || len(runs) != 1 {
		t.Fatalf("List = %v, %v", runs, err)
	}

	shown, _, err := execute(t, "history", "show", "-q", "--cargo-path", fixture.Root, runs[0].ShortID())
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	if shown != emitted {
		t.Errorf("stored report =\n%s\nemitted\n%s", shown, emitted)
	}
}

func TestHistoryCommands(t *testing.T) {
	fixture := testutil.LoadFixture(t, "chain")
	root := t.TempDir()

	stdout, _, err := execute(t, "history", "-q", "--cargo-path", root)
	if err != nil {
		t.Fatalf("history on an empty store: %v", err)
	}
	if !strings.Contains(stdout, "No runs recorded.") {
		t.Errorf("stdout = %q", stdout)
	}

	if _, _, err := execute(t, "analyze", "-q", "--record", "--label", "chain",
		"--cargo-path", root,
		"--callgraph", fixture.CallGraphPath,
		"--symbols", fixture.SymbolsPath,
	); err != nil {
		t.Fatalf("analyze --record: %v", err)
	}
	if _, err := os.Stat(paths.HistoryDB(root, "")); err != nil {
		t.Fatalf("history database not created: %v", err)
	}

	stdout, _, err = execute(t, "history", "-q", "--as", "json", "--cargo-path", root)
	if err != nil {
		t.Fatalf("history --as json: %v", err)
	}
	var runs []history.Run
	if err := json.Unmarshal([]byte(stdout), &runs); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if len(runs) != 1 || runs[0].Package != "chain" || runs[0].Chains != 1 {
		t.Fatalf("runs = %+v", runs)
	}

	stdout, _, err = execute(t, "history", "-q", "--cargo-path", root)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(stdout, runs[0].ShortID()) || !strings.Contains(stdout, "CHAINS") {
		t.Errorf("table = %q", stdout)
	}

	stdout, _, err = execute(t, "history", "show", "-q", "--cargo-path", root, runs[0].ShortID())
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	if want := readExpected(t, fixture, "report.txt"); stdout != want {
		t.Errorf("stored report =\n%s\nwant\n%s", stdout, want)
	}

	if _, _, err := execute(t, "history", "show", "-q", "--cargo-path", root, "zzzz"); err == nil {
		t.Error("history show with an unknown id should fail")
	}
}

func TestConfigCommands(t *testing.T) {
	root := t.TempDir()

	stdout, _, err := execute(t, "config", "init", "--cargo-path", root)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	path := filepath.Join(root, "panic-list.toml")
	if !strings.Contains(stdout, path) {
		t.Errorf("stdout = %q", stdout)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	if _, _, err := execute(t, "config", "init", "--cargo-path", root); err == nil || !strings.Contains(err.Error(), "--force") {
		t.Errorf("second init error = %v, want a hint about --force", err)
	}
	if _, _, err := execute(t, "config", "init", "--force", "--cargo-path", root); err != nil {
		t.Errorf("config init --force: %v", err)
	}

	t.Setenv("PANIC_LIST_TOOLS_OPT", "opt-18")
	stdout, _, err = execute(t, "config", "show", "--cargo-path", root, "--recursive-depth", "3", "--demangle")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"max_depth = 3", "demangle = true", `opt = "opt-18"`} {
		if !strings.Contains(stdout, want) {
			t.Errorf("config show missing %q:\n%s", want, stdout)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(stdout, "panic-list version ") {
		t.Errorf("stdout = %q", stdout)
	}
}

// fakeToolchain seeds a cargo root with the mangled fixture's manifest and
// returns a runner that plays the part of cargo, llvm-nm, llvm-lto and opt.
func fakeToolchain(t *testing.T, fixture *testutil.FixtureContext) (string, *toolchain.MockRunner) {
	t.Helper()
	t.Setenv("CARGO_TARGET_DIR", "")
	root := t.TempDir()

	manifest, err := os.ReadFile(filepath.Join(fixture.Root, "Cargo.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "Cargo.toml"), manifest, 0o644); err != nil {
		t.Fatal(err)
	}
	deps := paths.DepsDir(root, "release")
	if err := os.MkdirAll(deps, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"mylib-0a1b2c.bc", "core-3d4e5f.bc"} {
		if err := os.WriteFile(filepath.Join(deps, name), []byte("BC"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	runner := toolchain.NewMockRunner()
	for _, name := range []string{"cargo", "llvm-nm", "llvm-lto", "opt"} {
		runner.SetLookPath(name, "/usr/bin/"+name)
	}
	runner.SetCommand("llvm-nm", string(fixture.Symbols(t)), "", nil)
	graph := fixture.CallGraph(t)
	runner.OnRun("opt", func(toolchain.Command) {
		_ = os.WriteFile(paths.CallGraph(deps), graph, 0o644)
	})

	orig := newRunner
	newRunner = func() toolchain.Runner { return runner }
	t.Cleanup(func() { newRunner = orig })
	return root, runner
}

func TestRootCommandPipeline(t *testing.T) {
	fixture := testutil.LoadFixture(t, "mangled")
	root, runner := fakeToolchain(t, fixture)

	stdout, stderr, err := execute(t, "-q", "--cargo-path", root)
	if err != nil {
		t.Fatalf("panic-list: %v", err)
	}
	want := readExpected(t, fixture, "report.txt")
	if stdout != want {
		t.Errorf("stdout =\n%s\nwant\n%s", stdout, want)
	}

	deps := paths.DepsDir(root, "release")
	written, err := os.ReadFile(paths.DefaultReport(deps))
	if err != nil {
		t.Fatalf("default report not written: %v", err)
	}
	if string(written) != want {
		t.Errorf("default report =\n%s\nwant\n%s", written, want)
	}
	if !strings.Contains(stderr, "Also written to: "+paths.DefaultReport(deps)) {
		t.Errorf("stderr = %q", stderr)
	}

	calls := runner.Calls()
	if len(calls) != 4 {
		t.Fatalf("ran %d commands, want 4 (build, nm, lto, opt)", len(calls))
	}
	if build := strings.Join(calls[0].Args, " "); strings.Contains(build, "--package") {
		t.Errorf("--package passed outside a workspace: %s", build)
	}
	if nm := calls[1].Args; nm[len(nm)-1] != filepath.Join(deps, "mylib-0a1b2c.bc") {
		t.Errorf("llvm-nm args = %v", nm)
	}

	if _, err := os.Stat(paths.HistoryDB(root, "")); err != nil {
		t.Errorf("run was not recorded: %v", err)
	}
}

func TestRootCommandBuildFlags(t *testing.T) {
	fixture := testutil.LoadFixture(t, "mangled")
	root, runner := fakeToolchain(t, fixture)
	out := filepath.Join(t.TempDir(), "panics.json")

	_, _, err := execute(t, "-q", "--cargo-path", root,
		"-C", "-w", "-d", "-c", "-f", "alloc, serde",
		"--no-history", "--format", "json", "-o", out,
		"mylib",
	)
	if err != nil {
		t.Fatalf("panic-list: %v", err)
	}

	calls := runner.Calls()
	if got := strings.Join(calls[0].Args, " "); got != "clean --profile=release" {
		t.Errorf("first command = %q, want cargo clean", got)
	}
	build := strings.Join(calls[1].Args, " ")
	for _, want := range []string{"build-std=core", "--package mylib", "--no-default-features", "--features alloc,serde"} {
		if !strings.Contains(build, want) {
			t.Errorf("build args %q missing %q", build, want)
		}
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var report map[string]interface{}
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("invalid JSON report: %v", err)
	}
	if report["topLevel"] != float64(3) {
		t.Errorf("topLevel = %v", report["topLevel"])
	}
	if _, err := os.Stat(paths.HistoryDB(root, "")); !os.IsNotExist(err) {
		t.Errorf("--no-history still recorded a run (stat err %v)", err)
	}
}

func TestRootCommandToolMissing(t *testing.T) {
	fixture := testutil.LoadFixture(t, "mangled")
	root, runner := fakeToolchain(t, fixture)
	runner.SetCommand("cargo", "", "", errNotFound())

	_, _, err := execute(t, "-q", "--cargo-path", root)
	if !errors.HasCode(err, errors.ToolMissing) {
		t.Fatalf("error = %v, want %s", err, errors.ToolMissing)
	}
}

func TestRootCommandMissingLLVMTool(t *testing.T) {
	fixture := testutil.LoadFixture(t, "mangled")
	root, runner := fakeToolchain(t, fixture)
	t.Setenv("PANIC_LIST_TOOLS_OPT", "opt-99")

	_, _, err := execute(t, "-q", "--cargo-path", root)
	if !errors.HasCode(err, errors.ToolMissing) {
		t.Fatalf("error = %v, want %s", err, errors.ToolMissing)
	}
	if !strings.Contains(err.Error(), "opt-99") {
		t.Errorf("error should name the missing tool: %v", err)
	}
	if calls := runner.Calls(); len(calls) != 0 {
		t.Errorf("cargo ran before the missing tool was reported: %v", calls)
	}
}

func TestRootCommandPackageFromConfig(t *testing.T) {
	fixture := testutil.LoadFixture(t, "mangled")
	root, runner := fakeToolchain(t, fixture)
	if err := os.Remove(filepath.Join(root, "Cargo.toml")); err != nil {
		t.Fatal(err)
	}
	cfg := "[build]\npackage = \"mylib\"\nin_workspace = true\n"
	if err := os.WriteFile(filepath.Join(root, "panic-list.toml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := execute(t, "-q", "--no-history", "--cargo-path", root)
	if err != nil {
		t.Fatalf("panic-list: %v", err)
	}
	if want := readExpected(t, fixture, "report.txt"); stdout != want {
		t.Errorf("stdout =\n%s\nwant\n%s", stdout, want)
	}
	if build := strings.Join(runner.Calls()[0].Args, " "); !strings.Contains(build, "--package mylib") {
		t.Errorf("build args %q should name the configured package", build)
	}
}

func TestRootCommandArgumentOverridesConfiguredPackage(t *testing.T) {
	fixture := testutil.LoadFixture(t, "mangled")
	root, runner := fakeToolchain(t, fixture)
	cfg := "[build]\npackage = \"other\"\nin_workspace = true\n"
	if err := os.WriteFile(filepath.Join(root, "panic-list.toml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := execute(t, "-q", "--no-history", "--cargo-path", root, "mylib"); err != nil {
		t.Fatalf("panic-list: %v", err)
	}
	if build := strings.Join(runner.Calls()[0].Args, " "); !strings.Contains(build, "--package mylib") {
		t.Errorf("build args %q should name the positional package", build)
	}
}

func TestRootCommandWithoutManifest(t *testing.T) {
	_, _, err := execute(t, "-q", "--cargo-path", t.TempDir())
	if !errors.HasCode(err, errors.ManifestInvalid) {
		t.Fatalf("error = %v, want %s", err, errors.ManifestInvalid)
	}
}

func TestSplitFeatures(t *testing.T) {
	tests := map[string][]string{
		"":                {},
		"std":             {"std"},
		"alloc,serde":     {"alloc", "serde"},
		"alloc serde":     {"alloc", "serde"},
		" alloc , serde ": {"alloc", "serde"},
	}
	for in, want := range tests {
		got := splitFeatures(in)
		if strings.Join(got, "|") != strings.Join(want, "|") {
			t.Errorf("splitFeatures(%q) = %v, want %v", in, got, want)
		}
	}
}
