package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"assistant/pkg/catalog"
	"assistant/pkg/server"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the command API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.Close(); err != nil {
					rt.logger.Error("Failed to close store: %v", err)
				}
			}()

			if addr == "" {
				addr = rt.cfg.Server.Addr
			}
			srv := server.New(rt.resolver, server.Options{Gatherer: rt.registry})

			var watcher *catalog.Watcher
			if rt.overridePath != "" {
				watcher, err = catalog.NewWatcher(rt.catalog, rt.overridePath)
				if err != nil {
					rt.logger.Warn("Catalog hot reload disabled: %v", err)
				}
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return srv.Start(ctx, addr)
			})
			if watcher != nil {
				g.Go(func() error {
					return watcher.Run(ctx)
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "🎙️  Listening on %s\n", addr)
			if err := g.Wait(); err != nil {
				return err
			}
			rt.logger.Info("Shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr from config)")
	return cmd
}
