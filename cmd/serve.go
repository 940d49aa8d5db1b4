package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	providerfactory "bedrock-gateway/internal/provider/factory"
	"bedrock-gateway/internal/router"
	"bedrock-gateway/internal/server"
	"bedrock-gateway/internal/translator"
)

func newServeCommand() *cobra.Command {
	var overridePort int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("port") {
				if overridePort <= 0 || overridePort > 65535 {
					return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
				}
				cfg.Server.Port = overridePort
			}

			slog.SetDefault(newLogger(cfg.Logging, os.Stderr))

			registry, err := providerfactory.NewRegistry(cfg)
			if err != nil {
				return err
			}

			backend, err := providerfactory.NewBackend(ctx, cfg)
			if err != nil {
				return err
			}

			rt, err := router.New(backend, registry, router.Options{
				Defaults: translator.Defaults{
					Temperature:     *cfg.Inference.Temperature,
					TopP:            *cfg.Inference.TopP,
					MaxTokens:       cfg.Inference.MaxTokens,
					MaxOutputTokens: cfg.Inference.MaxOutputTokens,
				},
				EmbeddingConcurrency: cfg.Embeddings.MaxConcurrency,
				Logger:               slog.Default(),
			})
			if err != nil {
				return err
			}

			srv, err := server.New(cfg, rt)
			if err != nil {
				return err
			}

			return srv.Run(ctx)
		},
	}

	cmd.Flags().IntVar(&overridePort, "port", 0, "override server port from configuration")

	return cmd
}
