// Package main is the entry point for the VoxaOS voice assistant.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/normanking/voxaos/internal/config"
	"github.com/normanking/voxaos/internal/logging"
)

var (
	version   = "0.1.0"
	cfgPath   string
	verbose   bool
	logCloser io.Closer
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "voxaos",
		Short: "VoxaOS - a voice-driven assistant for your machine",
		Long: `VoxaOS listens, transcribes, reasons with tools and talks back.

Start the voice server:  voxaos serve
Type instead of talk:    voxaos chat
Recent interactions:     voxaos history -n 5
Configuration:           voxaos config show`,
		SilenceUsage:       true,
		PersistentPreRunE:  initLogging,
		PersistentPostRunE: closeLogging,
		RunE:               runServe,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.voxaos/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("VoxaOS v%s\n", version)
		},
	})
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOGGING INITIALIZATION
// ═══════════════════════════════════════════════════════════════════════════════

func initLogging(cmd *cobra.Command, args []string) error {
	// A missing .env is normal.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	lc := logging.DefaultConfig()
	if cfg, err := loadConfig(); err == nil {
		lc.Level = cfg.Logging.Level
		lc.Format = cfg.Logging.Format
		lc.FilePath = cfg.Logging.File
	}
	if verbose {
		lc.Level = logging.VerboseConfig().Level
	}

	_, closer, err := logging.Setup(lc)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	logCloser = closer

	log.Debug().Str("config", getConfigPath()).Msg("logging initialized")
	return nil
}

func closeLogging(cmd *cobra.Command, args []string) error {
	if logCloser != nil {
		return logCloser.Close()
	}
	return nil
}

func getConfigPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	return config.DefaultPath()
}

func loadConfig() (*config.Config, error) {
	return config.LoadFromPath(getConfigPath())
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIG COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), cfg)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), getConfigPath())
		},
	})

	return cmd
}
