package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"archaeologist/internal/gateway/app"
	"archaeologist/internal/gateway/config"
)

func newServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the analysis gateway (Connect RPC and lifecycle WebSocket)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadArgs(nil)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.NewWithConfig(ctx, cfg)
			if err != nil {
				return err
			}
			errCh := make(chan error, 1)
			go func() { errCh <- a.Start() }()

			select {
			case err := <-errCh:
				_ = a.Shutdown(context.Background())
				return err
			case <-ctx.Done():
			}
			log.Println("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen address (default: $PORT or :8081)")
	return cmd
}
