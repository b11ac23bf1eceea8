package main

import (
	"os"

	"github.com/spf13/cobra"

	"assistant/pkg/config"
)

// globalOptions are the flags every subcommand shares.
type globalOptions struct {
	configPath string
	projectDir string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "assistant",
		Short:         "Voice assistant command pipeline",
		Long:          "assistant turns spoken or typed requests into structured commands and executes them.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfig := os.Getenv(config.EnvConfigPath)
	if defaultConfig == "" {
		defaultConfig = config.DefaultConfigPath
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfig, "path to the JSON config file")
	root.PersistentFlags().StringVar(&opts.projectDir, "project-dir", ".", "directory holding .assistant/ state")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newSetKeyCmd(opts),
		newStatsCmd(),
		newVersionCmd(),
	)
	return root
}
