package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tianchangNorth/githeart/internal/config"
)

var (
	repoPath   string
	configPath string
	verbose    bool
	osExit     = os.Exit // For testing purposes
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "githeart",
		Short: "Synchronize Git repositories over HTTPS and SSH",
		Long: `A Git synchronization tool. Detects the remote protocol, resolves
credentials (stored tokens for HTTPS, discovered keys for SSH), and runs
fetch, pull, push, sync, and clone through an embedded Git library or the
system git binary.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&repoPath, "repo", "r", ".", "Path to the repository")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newPullCmd())
	rootCmd.AddCommand(newPushCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newCloneCmd())
	rootCmd.AddCommand(newTokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "githeart.json"
	}
	return filepath.Join(home, ".githeart", "config.json")
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
