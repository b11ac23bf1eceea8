package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"assistant/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "assistant %s\n", version.Version)
			fmt.Fprintf(out, "  commit: %s\n", version.Commit)
			fmt.Fprintf(out, "  built:  %s\n", version.Date)
			fmt.Fprintf(out, "  go:     %s\n", runtime.Version())
			return nil
		},
	}
}
