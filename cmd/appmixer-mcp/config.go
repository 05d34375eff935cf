package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/appmixer-mcp/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "paths",
		Short: "Show config file paths and whether they exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			paths := config.ConfigPaths(cwd)
			out := cmd.OutOrStdout()
			for _, scope := range []string{"user", "project"} {
				path := paths[scope]
				status := "missing"
				if _, err := os.Stat(path); err == nil {
					status = "exists"
				}
				fmt.Fprintf(out, "%-8s %s (%s)\n", scope+":", path, status)
			}
			return nil
		},
	})
	return cmd
}
