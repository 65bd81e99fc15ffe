package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironsheep/snapsum/internal/logging"
	"github.com/ironsheep/snapsum/internal/recognition"
	"github.com/ironsheep/snapsum/internal/server"
	"github.com/ironsheep/snapsum/internal/watch"
)

func (c *cli) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the recognition tools over MCP on stdin/stdout",
		Long: "mcp speaks JSON-RPC 2.0, one message per line, on stdin/stdout.\n" +
			"Configure it as a stdio server in your MCP client.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			worker := c.newWorker()
			defer closeWorker(worker)

			// Runs until the client closes stdin.
			logging.For("main").WithField("version", Version).Info("MCP server starting")
			return server.New(c.cfg, worker, Version).Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func (c *cli) watchCmd() *cobra.Command {
	var (
		existing bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Recognize every image dropped into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			worker := c.newWorker()
			defer closeWorker(worker)

			out := cmd.OutOrStdout()
			w := watch.New(args[0], worker, watch.Options{
				Debounce: time.Duration(c.cfg.Watch.DebounceMS) * time.Millisecond,
				Existing: existing,
			})
			return w.Run(ctx, func(res recognition.Result) {
				if asJSON {
					// Failures are part of the stream, not a reason to stop.
					_ = printResult(out, res, true)
					return
				}
				fmt.Fprintf(out, "%s\t%s\n", filepath.Base(res.ImagePath), res.Status())
			})
		},
	}

	cmd.Flags().BoolVar(&existing, "existing", false, "also recognize images already in the directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print each result as JSON")
	return cmd
}
