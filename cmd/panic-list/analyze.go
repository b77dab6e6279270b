package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"panic-list/internal/callgraph"
	"panic-list/internal/history"
	"panic-list/internal/paths"
)

var (
	analyzeCallGraph string
	analyzeSymbols   string
	analyzeRecord    bool
	analyzeLabel     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze an existing call graph without building",
	Long: `Run the backward search over a call graph that opt already produced.

The call graph is the .callgraph.dot file written by
'opt -disable-output -passes=dot-callgraph'. The symbol list is the output of
'llvm-nm --defined-only --extern-only --format=just-symbols', one name per line.

Examples:
  panic-list analyze --callgraph lto.o.merged.bc.callgraph.dot --symbols exported.txt
  panic-list analyze --callgraph graph.dot --symbols syms.txt --format json --demangle
  panic-list analyze --callgraph graph.dot --symbols syms.txt --record --label mylib`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeCallGraph, "callgraph", "", "Path to the dot call graph")
	analyzeCmd.Flags().StringVar(&analyzeSymbols, "symbols", "", "Path to the exported symbol list")
	analyzeCmd.Flags().BoolVar(&analyzeRecord, "record", false, "Record the run in the history database")
	analyzeCmd.Flags().StringVar(&analyzeLabel, "label", "", "Package name stored with a recorded run")
	_ = analyzeCmd.MarkFlagRequired("callgraph")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
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

	text, err := os.ReadFile(analyzeCallGraph)
	if err != nil {
		return fmt.Errorf("failed to read call graph: %w", err)
	}
	var symbols []string
	if analyzeSymbols != "" {
		data, err := os.ReadFile(analyzeSymbols)
		if err != nil {
			return fmt.Errorf("failed to read symbols: %w", err)
		}
		symbols = callgraph.ParseSymbols(data)
	} else {
		logger.Warn("No symbol list given; every chain needs an exported function, so the report will be empty")
	}

	report, err := analyze(ctx, text, symbols, cfg, root, logger)
	if err != nil {
		return err
	}

	format, err := ParseOutputFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	out := reportOutput{
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
		format: format,
		path:   resolveOutput(cfg.Output.Path),
	}
	if err := out.emit(report); err != nil {
		return err
	}

	if analyzeRecord && cfg.History.Enabled {
		label := analyzeLabel
		if label == "" {
			label = "-"
		}
		run := history.NewRun(label, cfg.Build.Profile, text, report)
		recordRun(ctx, paths.HistoryDB(root, cfg.History.Path), run, logger)
	}
	return nil
}
