package toolchain

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"panic-list/internal/callgraph"
	"panic-list/internal/errors"
	"panic-list/internal/paths"
	"panic-list/internal/slogutil"
)

// Settings describe one build of the crate under analysis.
type Settings struct {
	// Root is the cargo root every command runs in.
	Root string
	// Package is handed to cargo with --package when InWorkspace is set.
	Package string
	// Prefix selects the crate's own bitcode files for symbol listing.
	Prefix            string
	Profile           string
	Features          []string
	NoDefaultFeatures bool
	OnlyCore          bool
	InWorkspace       bool
	Clean             bool

	Cargo     string
	Toolchain string
	LlvmNm    string
	LlvmLto   string
	Opt       string
	OptLevel  string
}

// Artifacts are the outputs of a full pipeline run.
type Artifacts struct {
	DepsDir       string
	Symbols       []string
	CallGraphPath string
}

// Driver runs the build pipeline.
type Driver struct {
	runner   Runner
	settings Settings
	logger   *slog.Logger
}

// NewDriver creates a driver. A nil logger discards output.
func NewDriver(runner Runner, settings Settings, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Driver{runner: runner, settings: settings, logger: logger}
}

// DepsDir is where rustc leaves the bitcode for the configured profile.
func (d *Driver) DepsDir() string {
	return paths.DepsDir(d.settings.Root, d.settings.Profile)
}

// Run executes every step in order and returns the produced artifacts.
func (d *Driver) Run(ctx context.Context) (*Artifacts, error) {
	if err := d.CheckTools(); err != nil {
		return nil, err
	}
	if d.settings.Clean {
		if err := d.Clean(ctx); err != nil {
			return nil, err
		}
	}
	if err := d.Build(ctx); err != nil {
		return nil, err
	}
	symbols, err := d.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.Merge(ctx, symbols); err != nil {
		return nil, err
	}
	graph, err := d.CallGraph(ctx)
	if err != nil {
		return nil, err
	}
	return &Artifacts{DepsDir: d.DepsDir(), Symbols: symbols, CallGraphPath: graph}, nil
}

// CheckTools verifies that every tool of the pipeline is installed, so a
// missing LLVM tool is reported before the long std build.
func (d *Driver) CheckTools() error {
	s := d.settings
	var missing []string
	for _, name := range []string{s.Cargo, s.LlvmNm, s.LlvmLto, s.Opt} {
		path, err := d.runner.LookPath(name)
		if err != nil {
			missing = append(missing, name)
			continue
		}
		d.logger.Debug("Found tool", "name", name, "path", path)
	}
	if len(missing) == 0 {
		return nil
	}
	return errors.NewError(errors.ToolMissing,
		fmt.Sprintf("%s not installed or not in PATH", strings.Join(missing, ", ")),
		exec.ErrNotFound, nil).
		WithDetails(map[string]interface{}{"missing": missing})
}

// Clean removes the profile's build output.
func (d *Driver) Clean(ctx context.Context) error {
	_, err := d.exec(ctx, "cargo clean", Command{
		Name: d.settings.Cargo,
		Args: []string{"clean", "--profile=" + d.settings.Profile},
	})
	return err
}

// Build compiles the library and the standard library to LLVM bitcode.
func (d *Driver) Build(ctx context.Context) error {
	_, err := d.exec(ctx, "cargo rustc", d.buildCommand())
	return err
}

func (d *Driver) buildCommand() Command {
	s := d.settings
	var args []string
	if s.Toolchain != "" {
		args = append(args, s.Toolchain)
	}
	std := "build-std=std"
	if s.OnlyCore {
		std = "build-std=core"
	}
	args = append(args, "rustc", "--lib", "--crate-type=rlib", "-Z", std)
	if s.InWorkspace && s.Package != "" {
		args = append(args, "--package", s.Package)
	}
	args = append(args, "--profile="+s.Profile)
	if s.NoDefaultFeatures {
		args = append(args, "--no-default-features")
	}
	if len(s.Features) > 0 {
		args = append(args, "--features", strings.Join(s.Features, ","))
	}

	rustflags := "--emit=llvm-bc"
	if existing := os.Getenv("RUSTFLAGS"); existing != "" {
		rustflags += " " + existing
	}
	return Command{
		Name: s.Cargo,
		Args: args,
		Env:  []string{"RUSTFLAGS=" + rustflags},
	}
}

// ListSymbols returns the defined external symbols of every bitcode file that
// belongs to the crate, in first-seen order. rustc names those files
// <crate>-<hash>.bc.
func (d *Driver) ListSymbols(ctx context.Context) ([]string, error) {
	files, err := d.bitcode(func(name string) bool {
		return strings.HasPrefix(name, d.settings.Prefix+"-")
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		d.logger.Warn("No bitcode found for crate",
			"prefix", d.settings.Prefix,
			"dir", d.DepsDir(),
		)
	}

	var all bytes.Buffer
	for _, f := range files {
		out, err := d.exec(ctx, "llvm-nm", Command{
			Name: d.settings.LlvmNm,
			Args: []string{"--defined-only", "--extern-only", "--format=just-symbols", f},
		})
		if err != nil {
			return nil, err
		}
		all.Write(out)
		if len(out) > 0 && out[len(out)-1] != '\n' {
			all.WriteByte('\n')
		}
	}
	symbols := callgraph.ParseSymbols(all.Bytes())
	d.logger.Info("Collected exported symbols", "files", len(files), "symbols", len(symbols))
	return symbols, nil
}

// Merge links every bitcode file into one module, keeping symbols alive.
func (d *Driver) Merge(ctx context.Context, symbols []string) error {
	files, err := d.bitcode(func(name string) bool {
		return !paths.IsLtoArtifact(name) && !strings.HasPrefix(name, "panic_unwind")
	})
	if err != nil {
		return err
	}
	args := []string{d.settings.OptLevel, "--save-merged-module", "-o", paths.LtoObject(d.DepsDir())}
	for _, sym := range symbols {
		args = append(args, "--exported-symbol="+sym)
	}
	args = append(args, files...)

	_, err = d.exec(ctx, "llvm-lto", Command{Name: d.settings.LlvmLto, Args: args})
	return err
}

// CallGraph runs opt's dot-callgraph pass over the merged module and returns
// the path of the written graph.
func (d *Driver) CallGraph(ctx context.Context) (string, error) {
	merged := paths.MergedBitcode(d.DepsDir())
	if _, err := d.exec(ctx, "opt", Command{
		Name: d.settings.Opt,
		Args: []string{"-disable-output", "-passes=dot-callgraph", merged},
	}); err != nil {
		return "", err
	}
	graph := paths.CallGraph(d.DepsDir())
	if _, err := os.Stat(graph); err != nil {
		return "", errors.NewError(errors.ToolFailed,
			"opt finished without writing a call graph", err, nil).
			WithDetails(map[string]interface{}{"path": graph})
	}
	return graph, nil
}

// bitcode lists the .bc files in the deps directory accepted by keep, sorted
// by name so tool invocations are reproducible.
func (d *Driver) bitcode(keep func(name string) bool) ([]string, error) {
	dir := d.DepsDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewError(errors.ToolFailed,
			fmt.Sprintf("cannot read build output in %s", dir), err, nil)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".bc" || !keep(name) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// exec runs one step in the cargo root. Tool stderr is logged at debug level
// on success and carried in the error details on failure.
func (d *Driver) exec(ctx context.Context, step string, c Command) ([]byte, error) {
	c.Dir = d.settings.Root
	d.logger.Info("Running "+step, "tool", c.Name)
	d.logger.Debug("Command line", "cmd", c.String())

	stdout, stderr, err := d.runner.Run(ctx, c)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !stderrors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, toolError(step, c, stderr, err)
	}
	if len(stderr) > 0 {
		d.logger.Debug(step+" output", "stderr", strings.TrimSpace(string(stderr)))
	}
	return stdout, nil
}

func toolError(step string, c Command, stderr []byte, err error) error {
	details := map[string]interface{}{
		"step": step,
		"args": c.Args,
	}
	if len(stderr) > 0 {
		details["stderr"] = strings.TrimSpace(string(stderr))
	}

	if stderrors.Is(err, exec.ErrNotFound) {
		return errors.NewError(errors.ToolMissing,
			fmt.Sprintf("%s is not installed or not in PATH", c.Name), err, nil).
			WithDetails(details)
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewError(errors.ToolFailed, step+" was interrupted", err, nil).
			WithDetails(details)
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		details["exitCode"] = exitErr.ExitCode()
	}
	return errors.NewError(errors.ToolFailed, step+" failed", err, nil).WithDetails(details)
}
