package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

var cacheModel string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the embedding cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Drop cached vectors of one embedding model",
	Long: `Drop every cached vector of an embedding model. The model defaults to
embedding.model from the config.

Examples:
  tagmatch cache purge
  tagmatch cache purge --model text-embedding-v4`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		model := cacheModel
		if model == "" {
			model = globalConfig.Embedding.Model
		}
		if model == "" {
			return errors.New("no model: pass --model or set embedding.model")
		}
		cache, cleanup, err := openCache(globalConfig)
		if err != nil {
			return err
		}
		defer cleanup()
		if cache == nil {
			return errors.New("no embedding cache configured")
		}
		n, err := cache.Purge(cmd.Context(), model)
		if err != nil {
			return err
		}
		logger.Info("cache purged", "model", model, "vectors", n)
		return output(cmd, map[string]any{"model": model, "purged": n})
	},
}

func init() {
	cachePurgeCmd.Flags().StringVar(&cacheModel, "model", "", "embedding model whose vectors are dropped")
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}
