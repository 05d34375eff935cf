package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/appmixer-mcp/internal/registry"
)

func newToolsCommand(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools [query]",
		Short: "List the tools the server would expose, optionally ranked by a search query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := root.newServer()
			if err != nil {
				return err
			}
			defer srv.Close()

			descs := srv.Registry().ListTools(cmd.Context())
			if len(args) > 0 {
				descs = registry.Search(descs, args[0])
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(descs)
			}
			return printTools(cmd.OutOrStdout(), descs)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print descriptors as JSON")
	return cmd
}

func printTools(w io.Writer, descs []registry.Descriptor) error {
	if len(descs) == 0 {
		_, err := fmt.Fprintln(w, "No tools found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tSOURCE\tDESCRIPTION")
	for _, d := range descs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, d.Kind, d.Source(), firstLine(d.Description))
	}
	return tw.Flush()
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(s, "\n")
	const max = 80
	if r := []rune(s); len(r) > max {
		return string(r[:max-3]) + "..."
	}
	return s
}

func newCallCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "call <tool> [json-arguments]",
		Short: "Invoke a tool once and print its result",
		Example: `  appmixer-mcp call get-flows
  appmixer-mcp call get-flow '{"id":"6a1b..."}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var toolArgs map[string]any
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
					return fmt.Errorf("parsing arguments: %w", err)
				}
			}

			srv, err := root.newServer()
			if err != nil {
				return err
			}
			defer srv.Close()

			res, err := srv.Registry().Invoke(cmd.Context(), args[0], toolArgs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Text())
			if res.IsError {
				return fmt.Errorf("tool %s failed", args[0])
			}
			return nil
		},
	}
}
