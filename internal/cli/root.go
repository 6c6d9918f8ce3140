// Package cli implements the command-line interface for solvis.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/obernardovieira/solvis/internal/config"
	"github.com/obernardovieira/solvis/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "solvis",
		Short: "solvis - resolved call graphs for Solidity contracts",
		Long: `solvis follows the imports of Solidity entry files, extracts every
contract and function it reaches, and resolves each call site to the
function it targets across inheritance and imports.

Commands:
  init       Create a .solvis.yaml config file
  link       Build call graphs for entry files
  watch      Re-link whenever sources change
  status     Show call graph store statistics
  query      Query the stored call graph
  export     Dump the call graph store
  import     Restore a call graph store dump
  hook       Re-link after every git commit`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .solvis.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	if err := viper.BindPFlag("config_file", root.PersistentFlags().Lookup("config")); err != nil {
		panic(fmt.Sprintf("failed to bind config flag: %v", err))
	}

	root.AddCommand(newInitCmd())
	root.AddCommand(newLinkCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newImportCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newHookCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// loadConfig loads and validates the project configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger writes to the command's stderr at the configured level, or at
// debug with --verbose.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return logging.New(level, cmd.ErrOrStderr())
}
