package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"bedrock-gateway/internal/config"
	"bedrock-gateway/internal/provider"
	providerfactory "bedrock-gateway/internal/provider/factory"
)

// Execute runs the CLI with the provided arguments.
func Execute(ctx context.Context, args []string) error {
	root := newRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "bedrock-gateway",
		Short:         "OpenAI-compatible gateway for AWS Bedrock",
		Long:          "bedrock-gateway serves the OpenAI chat, embeddings and models API on top of the AWS Bedrock runtime.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "path to YAML configuration file (optional)")

	root.AddCommand(newServeCommand())
	root.AddCommand(newModelsCommand())

	return root
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(path)
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func newModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Print the public to backend model mapping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return printModels(cmd.OutOrStdout(), cfg)
		},
	}
}

func printModels(w io.Writer, cfg config.Config) error {
	registry, err := providerfactory.NewRegistry(cfg)
	if err != nil {
		return err
	}

	for _, kind := range []provider.Kind{provider.KindChat, provider.KindEmbedding} {
		fmt.Fprintf(w, "%s:\n", kind)
		for _, id := range registry.IDs(kind) {
			backendID, _, _ := registry.Lookup(id)
			fmt.Fprintf(w, "  %-28s %s\n", id, backendID)
		}
	}
	return nil
}
