package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ageless-collectibles/cardcataloger/internal/config"
	"github.com/ageless-collectibles/cardcataloger/internal/eventlog"
	"github.com/ageless-collectibles/cardcataloger/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const skipConfigAnnotation = "skipConfigLoad"

type commandContext struct {
	configPath string
	verbose    bool

	cfg *config.Config
}

func NewRootCmd() *cobra.Command {
	cc := &commandContext{}

	cmd := &cobra.Command{
		Use:   "cardcataloger",
		Short: "Trading card scan pipeline with LLM-powered card identification",
		Long: `Cardcataloger turns paired card scans into structured catalog records.

Scans are paired into item folders, queued into batches, and post-processed
by a vision model (or the offline mock) into JSON, text, CSV, Parquet and
spreadsheet outputs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			if shouldSkipConfig(cmd) {
				return nil
			}
			return cc.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&cc.configPath, "config", "c", "", "Configuration file path")
	cmd.PersistentFlags().BoolVarP(&cc.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newPairCmd(cc))
	cmd.AddCommand(newQueueCmd(cc))
	cmd.AddCommand(newPostCmd(cc))
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func (c *commandContext) load() error {
	cfg, path, exists, err := config.Load(strings.TrimSpace(c.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if c.verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level, Format: cfg.Logging.Format, Writer: os.Stderr})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	slog.Debug("Loaded configuration", "path", path, "exists", exists, "provider", cfg.Provider)
	c.cfg = cfg
	return nil
}

func (c *commandContext) openEvents() (*eventlog.Log, error) {
	return eventlog.Open(c.cfg.Paths.LogDir)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}
