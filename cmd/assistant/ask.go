package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"assistant/pkg/pipeline"
)

func newAskCmd(opts *globalOptions) *cobra.Command {
	var (
		callerID   string
		callerName string
		asJSON     bool
		imageOut   string
	)

	cmd := &cobra.Command{
		Use:   "ask <text>",
		Short: "Resolve and execute one request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			text := strings.Join(args, " ")
			res := rt.resolver.ResolveCommand(cmd.Context(), text, callerID, pipeline.Context{CallerName: callerName})

			if res.Image != nil && imageOut != "" {
				if err := os.WriteFile(imageOut, res.Image.Data, 0o644); err != nil {
					return fmt.Errorf("failed to write image: %w", err)
				}
				// Keep JSON output small once the bytes are on disk.
				res.Image = nil
				fmt.Fprintf(cmd.ErrOrStderr(), "🖼️  Image written to %s\n", imageOut)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintln(out, res.Response)
			return nil
		},
	}

	cmd.Flags().StringVar(&callerID, "caller-id", "cli", "caller id used for quotas and the profile")
	cmd.Flags().StringVar(&callerName, "caller-name", "", "name the assistant should use for the caller")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().StringVar(&imageOut, "image-out", "", "write a generated image to this file")
	return cmd
}
