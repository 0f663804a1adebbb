package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/normanking/voxaos/internal/server"
)

var (
	serveHost string
	servePort int
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the voice WebSocket server",
		RunE:  runServe,
	}
	cmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory, cleanup, err := bootstrap(ctx, cfg, bootstrapOptions{})
	if err != nil {
		return err
	}
	defer cleanup()

	return server.New(factory).Run(ctx)
}
