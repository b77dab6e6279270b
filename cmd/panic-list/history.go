package main

import (
	stderrors "errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"panic-list/internal/history"
)

var (
	historyLimit  int
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Long: `List past analyses recorded in .panic-list/history.db under the cargo root.

Examples:
  panic-list history                 # the 20 most recent runs
  panic-list history -n 5 --as json  # as JSON
  panic-list history show 3f2a9c1b   # reprint a stored report`,
	Args: cobra.NoArgs,
	RunE: runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the report of a recorded run",
	Long:  "Print the stored text report of a run. Any unique prefix of the run id works.",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")
	historyCmd.Flags().StringVar(&historyFormat, "as", "text", "Listing format (text, json, yaml)")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	root, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	format, err := ParseOutputFormat(historyFormat)
	if err != nil {
		return err
	}

	store, err := openHistory(root, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format != FormatText {
		if runs == nil {
			runs = []history.Run{}
		}
		data, err := FormatValue(runs, format)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tPACKAGE\tPROFILE\tDEPTH\tCHAINS\tLINES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			r.ShortID(),
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.Package,
			r.Profile,
			r.MaxDepth,
			r.Chains,
			r.Lines,
		)
	}
	return tw.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	root, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := openHistory(root, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	run, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		if stderrors.Is(err, history.ErrAmbiguous) {
			return fmt.Errorf("%w; use more characters of the id", err)
		}
		return err
	}

	if len(run.Report) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), noPanicsMessage)
		return nil
	}
	_, err = cmd.OutOrStdout().Write(run.Report)
	return err
}
