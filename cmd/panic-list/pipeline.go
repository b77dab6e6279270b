package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"panic-list/internal/callgraph"
	"panic-list/internal/config"
	"panic-list/internal/errors"
	"panic-list/internal/history"
	"panic-list/internal/paths"
	"panic-list/internal/slogutil"
	"panic-list/internal/sources"
)

const noPanicsMessage = "No panics found! Create a staticlib library output to analyze for true panic-freeness."

// loadConfig resolves the cargo root, loads panic-list.toml from it and lays
// explicitly set flags over the result.
func loadConfig(cmd *cobra.Command) (string, *config.Config, error) {
	root, err := filepath.Abs(cargoPath)
	if err != nil {
		return "", nil, fmt.Errorf("invalid cargo path %q: %w", cargoPath, err)
	}
	cfg, err := config.LoadConfig(root)
	if err != nil {
		return "", nil, err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return "", nil, errors.NewError(errors.ConfigInvalid, err.Error(), err, nil)
	}
	return root, cfg, nil
}

// applyFlags copies every flag the user set onto cfg. Unset flags leave the
// configured value alone.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed("recursive-depth") {
		cfg.Analysis.MaxDepth = recursiveDepth
	}
	if changed("abort-symbol") {
		cfg.Analysis.AbortSymbol = abortSymbol
	}
	if changed("demangle") {
		cfg.Analysis.Demangle = demangleFlag
	}
	if changed("annotate") {
		cfg.Analysis.Annotate = annotateFlag
	}
	if changed("output") {
		cfg.Output.Path = outputPath
	}
	if changed("format") {
		cfg.Output.Format = outputFormat
	}
	if changed("log-file") {
		cfg.Logging.File = logFile
	}

	if changed("no-default-feat") {
		cfg.Build.NoDefaultFeatures = noDefaultFeat
	}
	if changed("features") {
		cfg.Build.Features = splitFeatures(featuresFlag)
	}
	if changed("only-core") {
		cfg.Build.OnlyCore = onlyCore
	}
	if changed("profile") {
		cfg.Build.Profile = profileFlag
	}
	if changed("should-clean") {
		cfg.Build.Clean = shouldClean
	}
	if changed("in-workspace") {
		cfg.Build.InWorkspace = inWorkspace
	}
	if changed("no-history") && noHistory {
		cfg.History.Enabled = false
	}
}

// newLogger builds the progress logger on stderr, teed to the configured log
// file. -v and -q win over the configured level.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, func(), error) {
	level := slogutil.LevelFromString(cfg.Logging.Level)
	if verbosity > 0 || quietFlag {
		level = slogutil.LevelFromVerbosity(verbosity, quietFlag)
	}
	logger := slogutil.NewTerminalLogger(cmd.ErrOrStderr(), level)
	if cfg.Logging.File == "" {
		return logger, func() {}, nil
	}

	fileLogger, f, err := slogutil.NewFileLogger(cfg.Logging.File, slog.LevelDebug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	tee := slog.New(slogutil.NewTeeHandler(logger.Handler(), fileLogger.Handler()))
	return tee, func() { _ = f.Close() }, nil
}

// analyze runs the backward search and, when asked, annotates the result
// with source locations.
func analyze(ctx context.Context, text []byte, symbols []string, cfg *config.Config, root string, logger *slog.Logger) (*callgraph.Report, error) {
	report, err := callgraph.Analyze(text, symbols, callgraph.Options{
		MaxDepth:    cfg.Analysis.MaxDepth,
		AbortSymbol: cfg.Analysis.AbortSymbol,
		Demangle:    cfg.Analysis.Demangle,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	if len(report.Missing) > 0 {
		logger.Warn("Exported symbols missing from the call graph", "count", len(report.Missing))
		for _, name := range report.Missing {
			logger.Debug("Missing symbol", "name", name, "code", errors.SymbolNotFound)
		}
	}

	if cfg.Analysis.Annotate && !report.Empty() {
		if !sources.IsAvailable() {
			logger.Warn("Source annotation needs a cgo build; skipping")
			return report, nil
		}
		idx, err := sources.NewIndexer().BuildIndex(ctx, root)
		if err != nil {
			logger.Warn("Cannot index sources", "error", err.Error())
			return report, nil
		}
		n := sources.Annotate(report, idx)
		logger.Info("Annotated exported functions", "located", n, "chains", report.Chains())
	}
	return report, nil
}

// reportOutput decides where a rendered report goes. With an explicit path
// only that file is written; otherwise the report goes to stdout and, when
// defaultPath is set, also to that file.
type reportOutput struct {
	stdout      io.Writer
	stderr      io.Writer
	format      OutputFormat
	path        string
	defaultPath string
}

func (o reportOutput) emit(report *callgraph.Report) error {
	data, err := FormatReport(report, o.format)
	if err != nil {
		return err
	}
	if report.Empty() {
		fmt.Fprintln(o.stderr, noPanicsMessage)
	}

	if o.path != "" {
		if err := writeFile(o.path, data); err != nil {
			return err
		}
		fmt.Fprintf(o.stderr, "Wrote panic-list output: %s\n", o.path)
		return nil
	}

	if _, err := o.stdout.Write(data); err != nil {
		return err
	}
	if o.defaultPath != "" {
		if err := writeFile(o.defaultPath, data); err != nil {
			return err
		}
		fmt.Fprintf(o.stderr, "Also written to: %s\n", o.defaultPath)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// recordRun stores a run in the history database. Failures are logged and
// never fail the command; the report has already been written.
func recordRun(ctx context.Context, dbPath string, run *history.Run, logger *slog.Logger) {
	store, err := history.Open(dbPath, logger)
	if err != nil {
		logger.Warn("Cannot open run history", "path", dbPath, "error", err.Error())
		return
	}
	defer func() { _ = store.Close() }()

	if prev, err := store.LatestByFingerprint(ctx, run.Fingerprint); err == nil && prev != nil {
		logger.Info("Call graph unchanged since an earlier run",
			"previous", prev.ShortID(),
			"previousChains", prev.Chains,
		)
	}
	if err := store.Record(ctx, run); err != nil {
		logger.Warn("Cannot record run", "error", err.Error())
		return
	}
	logger.Info("Recorded run", "id", run.ShortID(), "history", dbPath)
}

// openHistory opens the history database of the configured cargo root.
func openHistory(root string, cfg *config.Config, logger *slog.Logger) (*history.Store, error) {
	return history.Open(paths.HistoryDB(root, cfg.History.Path), logger)
}
