// Package commands implements the tagmatch command tree.
package commands

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/haivivi/tagmatch/cmd/tagmatch/internal/config"
	"github.com/haivivi/tagmatch/pkg/cli"
)

var (
	// Global flags
	configPath   string
	verbose      bool
	outputFormat string
	outputFile   string
	jqQuery      string

	// Loaded by the root PersistentPreRunE.
	globalConfig *config.Config
	logger       *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tagmatch",
	Short: "Map free-form labels to canonical tags",
	Long: `tagmatch - match free-form labels against a canonical tag catalog.

A label goes through exact lookup, alias lookup, then fuzzy and semantic
search in parallel; candidates are ranked by score and popularity.

Configuration is read from --config, $TAGMATCH_CONFIG or
~/.tagmatch/config.yaml (YAML or TOML).

Examples:
  # Build the artifact from raw tag tables
  tagmatch build danbooru.csv anima.csv

  # Match labels
  tagmatch match "scholo uniform" "pink petals falling" -o table

  # Parse a model answer from stdin and keep the best tag per label
  echo '["long hair", "cat ears"]' | tagmatch match --select best`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&configPath, "config", "", "config file (YAML or TOML)")
	f.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	f.StringVarP(&outputFormat, "output", "o", "yaml", "output format: yaml, json, table, raw")
	f.StringVar(&outputFile, "output-file", "", "write output to a file instead of stdout")
	f.StringVar(&jqQuery, "jq", "", "jq expression applied to the output")
}

func setup(cmd *cobra.Command, _ []string) error {
	if _, err := cli.ParseOutputFormat(outputFormat); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	globalConfig = cfg
	logger, err = newLogger(cmd.ErrOrStderr(), cfg.Log, verbose)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	if cfg.Path != "" {
		logger.Debug("config loaded", "path", cfg.Path)
	}
	return nil
}

func newLogger(w io.Writer, c config.LogConfig, verbose bool) (*slog.Logger, error) {
	level, err := c.SlogLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// output prints v in the --output format, filtered by --jq.
func output(cmd *cobra.Command, v any) error {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	opts := cli.OutputOptions{Format: format, Query: jqQuery, File: outputFile}
	if outputFile == "" {
		opts.Writer = cmd.OutOrStdout()
	}
	return cli.Output(v, opts)
}
