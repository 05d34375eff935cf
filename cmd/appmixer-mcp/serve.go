package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio by default, HTTP/SSE with --port)",
		Long: `Start the MCP server.

Without --port the server speaks MCP over stdin/stdout. With --port it serves
MCP over SSE at / and Prometheus metrics at /metrics.

Configuration is read from ~/.config/appmixer-mcp/config.kdl, then
.appmixer-mcp.kdl in the working directory, then --config, then the
APPMIXER_BASE_URL, APPMIXER_ACCESS_TOKEN, APPMIXER_USERNAME and
APPMIXER_PASSWORD environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := root.newServer()
			if err != nil {
				return err
			}
			defer srv.Close()

			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			if port > 0 {
				err = srv.RunHTTP(ctx, port)
			} else {
				err = srv.RunStdio(ctx)
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "serve MCP over HTTP/SSE on this port")
	return cmd
}
