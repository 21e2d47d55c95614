package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vesper-assistant/vesper/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "vesper",
	Short: "Intent orchestration core for a multi-agent voice assistant",
	Long: `Vesper takes a recognized intent, binds it to the agents that can
service it, expands it into a plan of atomic tasks, and runs the plan with
retries, deadlines, and per-agent concurrency limits.

Core capabilities:
- Resolves intents against a declarative capability roster
- Splits compound utterances into per-capability tasks
- Executes task graphs with dependency ordering and cascading cancellation
- Keeps per-session context so follow-up turns can say "it" or "that file"`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: "+config.GetUserConfigPath()+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(remindersCmd)
	rootCmd.AddCommand(capabilitiesCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		cfg, err := config.LoadFromPath(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
