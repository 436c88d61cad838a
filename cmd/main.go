package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/ozgurkarahan/get-started-with-ai-agents/pkg/app"
	"github.com/ozgurkarahan/get-started-with-ai-agents/pkg/config"
	"github.com/ozgurkarahan/get-started-with-ai-agents/pkg/env"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	logLevel string
	envFiles []string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	serve := newServeCmd(opts)
	root := &cobra.Command{
		Use:          "foundry-a2a-bridge",
		Short:        "Expose an Azure AI Foundry agent over the A2A protocol",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	root.Flags().AddFlagSet(serve.Flags())

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Set the logging level (debug, info, warn, error); overrides "+config.LogLevel.Name())
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "Load environment variables from these files; variables already set win")

	root.AddCommand(serve, newAskCmd(opts), newMCPCmd(opts), newEnvCmd())
	return root
}

// setup loads .env files and the configuration, and builds the logger. The
// returned flush function syncs the logger.
func (o *rootOptions) setup() (config.Config, logr.Logger, func(), error) {
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return config.Config{}, logr.Logger{}, nil, err
	}

	cfg := config.Load()
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	logger, zapLogger := app.NewLogger(cfg.LogLevel)
	logger.Info("Logger initialized", "level", app.ParseLevel(cfg.LogLevel).String())
	return cfg, logger, func() { _ = zapLogger.Sync() }, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var host, port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the A2A endpoint (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, flush, err := opts.setup()
			if err != nil {
				return err
			}
			defer flush()

			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bridge, err := app.New(ctx, app.AppConfig{Config: cfg, Logger: logger})
			if err != nil {
				logger.Error(err, "Failed to start bridge")
				return err
			}
			if err := bridge.Run(ctx); err != nil {
				logger.Error(err, "Bridge stopped with error")
				return err
			}
			logger.Info("Bridge stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Set the host address to bind to; overrides "+config.Host.Name())
	cmd.Flags().StringVar(&port, "port", "", "Set the port to listen on; overrides "+config.Port.Name())
	return cmd
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var stream bool

	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Send one prompt to the agent and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, flush, err := opts.setup()
			if err != nil {
				return err
			}
			defer flush()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bridge, err := app.New(ctx, app.AppConfig{Config: cfg, Logger: logger})
			if err != nil {
				logger.Error(err, "Failed to start bridge")
				return err
			}
			defer func() {
				if err := bridge.Close(context.WithoutCancel(ctx)); err != nil {
					logger.Error(err, "Failed to close bridge")
				}
			}()

			if err := bridge.Ask(ctx, strings.Join(args, " "), stream, cmd.OutOrStdout()); err != nil {
				logger.Error(err, "Agent invocation failed")
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&stream, "stream", false, "Print answer fragments as they arrive")
	return cmd
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the agent as an MCP ask_agent tool over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, flush, err := opts.setup()
			if err != nil {
				return err
			}
			defer flush()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bridge, err := app.New(ctx, app.AppConfig{Config: cfg, Logger: logger})
			if err != nil {
				logger.Error(err, "Failed to start bridge")
				return err
			}
			defer func() {
				if err := bridge.Close(context.WithoutCancel(ctx)); err != nil {
					logger.Error(err, "Failed to close bridge")
				}
			}()

			if err := bridge.MCP().ServeStdio(ctx); err != nil && ctx.Err() == nil {
				logger.Error(err, "MCP server stopped with error")
				return err
			}
			return nil
		},
	}
}

func newEnvCmd() *cobra.Command {
	var format, component string

	cmd := &cobra.Command{
		Use:   "env",
		Short: "List the environment variables the bridge reads",
		Long:  "Generate documentation for all bridge environment variables in markdown or JSON format.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch format {
			case "markdown", "md":
				fmt.Fprint(cmd.OutOrStdout(), env.ExportMarkdown(component))
			case "json":
				fmt.Fprint(cmd.OutOrStdout(), env.ExportJSON(component))
			default:
				return fmt.Errorf("unknown format %q: use markdown or json", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "markdown", "Output format: markdown, json")
	cmd.Flags().StringVar(&component, "component", "all", "Filter by component: foundry, server, telemetry, testing, all")
	return cmd
}
