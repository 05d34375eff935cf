package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/appmixer-mcp/internal/config"
	"github.com/standardbeagle/appmixer-mcp/internal/logging"
	"github.com/standardbeagle/appmixer-mcp/internal/server"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "appmixer-mcp",
		Short:         "MCP server exposing Appmixer flows and gateway tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if opts.logLevel == "" && opts.logFormat == "" {
				return
			}
			level := logging.ParseLevel(os.Getenv(logging.LogLevelEnvVar))
			if opts.logLevel != "" {
				level = logging.ParseLevel(opts.logLevel)
			}
			format := os.Getenv(logging.LogFormatEnvVar)
			if opts.logFormat != "" {
				format = opts.logFormat
			}
			logging.SetDefault(logging.New(os.Stderr, level, format))
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "explicit KDL config file (overrides user and project config)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (default from "+logging.LogLevelEnvVar+")")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: text or json (default from "+logging.LogFormatEnvVar+")")

	root.AddCommand(
		newServeCommand(opts),
		newToolsCommand(opts),
		newCallCommand(opts),
		newConfigCommand(),
		newVersionCommand(),
	)
	return root
}

// loadConfig resolves the configuration relative to the working directory.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}
	return config.Load(cwd, o.configPath)
}

func (o *rootOptions) newServer() (*server.Server, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return server.NewFromConfig(cfg, logging.Default())
}

// signalAwareContext cancels on SIGINT or SIGTERM.
func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "appmixer-mcp version %s\n", server.Version)
		},
	}
}
