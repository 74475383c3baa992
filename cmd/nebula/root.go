package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vanyastaff/nebula-sub011/internal/config"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "nebula",
	Short: "Nebula - Workflow Execution Engine",
	Long: `Nebula executes workflow definitions: directed graphs of action
nodes wired by conditional connections, with retries, timeouts,
credential injection and a persistent execution journal.

Use "nebula validate" to check a workflow file and "nebula run" to
execute it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// loadConfig resolves the runtime configuration for commands that need
// one. An unset --config falls back to NEBULA_CONFIG, then to defaults.
func loadConfig() (*config.Config, error) {
	path := configFile
	if path == "" {
		path = os.Getenv("NEBULA_CONFIG")
	}
	return config.Load(path)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the nebula version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "nebula %s\n", buildVersion)
	},
}

// buildVersion is stamped by the release pipeline via -ldflags.
var buildVersion = "dev"

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
}
