package main

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"

	"panic-list/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage panic-list configuration",
	Long: `View and manage panic-list.toml in the cargo root.

Every key can also be set through the environment, e.g.
PANIC_LIST_ANALYSIS_MAX_DEPTH=4 or PANIC_LIST_TOOLS_OPT=opt-18.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a panic-list.toml with the default settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  "Print the configuration after applying panic-list.toml, environment overrides and flags.",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing panic-list.toml")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(cargoPath)
	if err != nil {
		return fmt.Errorf("invalid cargo path %q: %w", cargoPath, err)
	}
	path := filepath.Join(root, config.FileName)
	if err := config.DefaultConfig().Save(path, configForce); err != nil {
		if stderrors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return cfg.Encode(cmd.OutOrStdout())
}
