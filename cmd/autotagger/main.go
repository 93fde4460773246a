// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the autotagger CLI.
package main

import (
	"log/slog"
	"maps"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pdiddy/autotagger/internal/logging"
	"github.com/pdiddy/autotagger/internal/prefs"
	"github.com/pdiddy/autotagger/internal/secrets"
	"github.com/pdiddy/autotagger/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Process-wide state prepared by the root command before any subcommand runs.
var (
	logger *slog.Logger
	store  *prefs.Store

	// loadedSecrets holds API keys loaded from .secrets/ at startup.
	loadedSecrets map[string]string
)

// rootCmd is the base command for the autotagger CLI.
var rootCmd = &cobra.Command{
	Use:   "autotagger",
	Short: "Generate subject tags for bibliographic items",
	Long: `autotagger assigns subject tags to the items of a local library. For each
item it looks up MeSH terms and author keywords in PubMed, falls back to a
generative AI model when PubMed has nothing, normalises the candidates, and
caches the result.

Import items from a CSL-YAML or CSL-JSON file, tag them, and export the
library with its tags.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./autotagger.yaml or ~/.config/autotagger/autotagger.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().String("library", "", "library database path (overrides library.path)")
}

func setup(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	l, err := logging.New(os.Stderr, logging.Options{Level: level, Format: format})
	if err != nil {
		return err
	}
	logger = l

	// A missing .env is normal.
	_ = godotenv.Load()

	s, err := secrets.Load(".secrets/", logger)
	if err != nil {
		return err
	}
	loadedSecrets = s
	if len(s) > 0 {
		logger.Debug("secrets loaded", slog.Any("keys", slices.Sorted(maps.Keys(s))))
	}

	cfgFile, _ := cmd.Flags().GetString("config")
	store, err = prefs.Open(cfgFile, logger)
	if err != nil {
		return err
	}
	if f := cmd.Flags().Lookup("library"); f != nil && f.Changed {
		store.Set(prefs.KeyLibraryPath, f.Value.String())
	}
	return nil
}

// loadConfig assembles the typed configuration with secrets filled in.
func loadConfig() (types.Config, error) {
	cfg, err := prefs.Load(store)
	if err != nil {
		return cfg, err
	}
	secrets.Apply(&cfg, loadedSecrets)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
