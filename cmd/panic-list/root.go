package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"panic-list/internal/cargo"
	"panic-list/internal/config"
	"panic-list/internal/history"
	"panic-list/internal/paths"
	"panic-list/internal/toolchain"
	"panic-list/internal/version"
)

var (
	// Shared by every command that produces a report.
	cargoPath      string
	outputPath     string
	outputFormat   string
	recursiveDepth int
	abortSymbol    string
	demangleFlag   bool
	annotateFlag   bool
	verbosity      int
	quietFlag      bool
	logFile        string

	// Build selection, root command only.
	noDefaultFeat bool
	featuresFlag  string
	onlyCore      bool
	profileFlag   string
	shouldClean   bool
	inWorkspace   bool
	noHistory     bool
)

// newRunner is replaced in tests.
var newRunner = func() toolchain.Runner {
	return toolchain.NewExecRunner()
}

var rootCmd = &cobra.Command{
	Use:   "panic-list [flags] [PACKAGE-NAME]",
	Short: "List the exported functions of a Rust library that can panic",
	Long: `panic-list builds a Rust library to LLVM bitcode, merges it with the standard
library, extracts the call graph and walks backward from rust_begin_unwind to find
every exported function that can reach it.

Each exported function that can panic is printed at depth 0, followed by the
deepest call chain leading from it to the unwind entry.

The package name defaults to [build] package in panic-list.toml, then to
[package].name in Cargo.toml.

Examples:
  panic-list                              # analyze the crate in the current directory
  panic-list --cargo-path ../mylib -c     # #![no_std] crate, build only core
  panic-list -w -f "alloc serde" member   # a workspace member with features
  panic-list --format json --demangle     # machine-readable, readable names`,
	Args:          cobra.MaximumNArgs(1),
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

func init() {
	rootCmd.SetVersionTemplate("panic-list version {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cargoPath, "cargo-path", "./", "Cargo root directory")
	pf.StringVarP(&outputPath, "output", "o", "", "Write the report to this file instead of stdout")
	pf.StringVar(&outputFormat, "format", "text", "Report format (text, json, yaml)")
	pf.IntVar(&recursiveDepth, "recursive-depth", 10, "Maximum backward search depth")
	pf.StringVar(&abortSymbol, "abort-symbol", "rust_begin_unwind", "Label of the abort entry")
	pf.BoolVar(&demangleFlag, "demangle", false, "Demangle symbol names in the report")
	pf.BoolVar(&annotateFlag, "annotate", false, "Add source locations of exported functions")
	pf.CountVarP(&verbosity, "verbose", "v", "Print tool output (repeatable)")
	pf.BoolVarP(&quietFlag, "quiet", "q", false, "Suppress progress logs")
	pf.StringVar(&logFile, "log-file", "", "Also write debug logs to this file")

	f := rootCmd.Flags()
	f.BoolVarP(&noDefaultFeat, "no-default-feat", "d", false, "Turn off the library's default features")
	f.StringVarP(&featuresFlag, "features", "f", "", "Space or comma separated features to enable")
	f.BoolVarP(&onlyCore, "only-core", "c", false, "Build only core (for #![no_std] libraries)")
	f.StringVarP(&profileFlag, "profile", "p", "release", "Cargo profile")
	f.BoolVarP(&shouldClean, "should-clean", "C", false, "Run cargo clean for the profile first")
	f.BoolVarP(&inWorkspace, "in-workspace", "w", false, "The package is a workspace member")
	f.BoolVar(&noHistory, "no-history", false, "Do not record this run")
}

func runRoot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	root, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	// A positional name wins over [build] package.
	explicit := cfg.Build.Package
	if len(args) == 1 {
		explicit = args[0]
	}
	manifest, err := cargo.Load(root)
	if err != nil {
		if explicit == "" {
			return err
		}
		logger.Warn("Cannot read manifest, using the package name as given", "error", err.Error())
		manifest = nil
	}
	target, err := cargo.ResolveTarget(manifest, explicit)
	if err != nil {
		return err
	}
	if manifest != nil && manifest.IsVirtual() && !cfg.Build.InWorkspace {
		logger.Warn("Cargo.toml is a virtual workspace manifest; pass --in-workspace to build a member",
			"package", target.Package)
	}

	driver := toolchain.NewDriver(newRunner(), buildSettings(root, target, cfg), logger)
	artifacts, err := driver.Run(ctx)
	if err != nil {
		return err
	}

	text, err := os.ReadFile(artifacts.CallGraphPath)
	if err != nil {
		return fmt.Errorf("failed to read call graph: %w", err)
	}
	report, err := analyze(ctx, text, artifacts.Symbols, cfg, root, logger)
	if err != nil {
		return err
	}

	format, err := ParseOutputFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	out := reportOutput{
		stdout:      cmd.OutOrStdout(),
		stderr:      cmd.ErrOrStderr(),
		format:      format,
		path:        resolveOutput(cfg.Output.Path),
		defaultPath: paths.DefaultReport(artifacts.DepsDir),
	}
	if err := out.emit(report); err != nil {
		return err
	}

	if cfg.History.Enabled {
		run := history.NewRun(target.Package, cfg.Build.Profile, text, report)
		recordRun(ctx, paths.HistoryDB(root, cfg.History.Path), run, logger)
	}
	return nil
}

func buildSettings(root string, target cargo.Target, cfg *config.Config) toolchain.Settings {
	return toolchain.Settings{
		Root:              root,
		Package:           target.Package,
		Prefix:            target.Prefix,
		Profile:           cfg.Build.Profile,
		Features:          cfg.Build.Features,
		NoDefaultFeatures: cfg.Build.NoDefaultFeatures,
		OnlyCore:          cfg.Build.OnlyCore,
		InWorkspace:       cfg.Build.InWorkspace,
		Clean:             cfg.Build.Clean,
		Cargo:             cfg.Tools.Cargo,
		Toolchain:         cfg.Tools.Toolchain,
		LlvmNm:            cfg.Tools.LlvmNm,
		LlvmLto:           cfg.Tools.LlvmLto,
		Opt:               cfg.Tools.Opt,
		OptLevel:          cfg.Tools.OptLevel,
	}
}

// splitFeatures accepts the space or comma separated list cargo itself takes.
func splitFeatures(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// resolveOutput makes an explicit output path absolute against the working
// directory the user ran the command from.
func resolveOutput(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
