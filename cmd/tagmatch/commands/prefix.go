package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/tagmatch/pkg/artifact"
	"github.com/haivivi/tagmatch/pkg/normalize"
)

var prefixLimit int

var prefixCmd = &cobra.Command{
	Use:   "prefix <text>",
	Short: "Autocomplete canonical tag names",
	Long: `List catalog entries whose name starts with the normalized text, most
popular first.

Examples:
  tagmatch prefix "long h" -o table
  tagmatch prefix hatsune --limit 3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(globalConfig)
		if err != nil {
			return err
		}
		bundle, err := artifact.Load(ctx, store, logger)
		if err != nil {
			return fmt.Errorf("load artifact from %s: %w", store, err)
		}
		entries := bundle.Catalog.SearchPrefix(normalize.Normalize(args[0]), prefixLimit)
		return output(cmd, entryTable(entries))
	},
}

func init() {
	prefixCmd.Flags().IntVar(&prefixLimit, "limit", 10, "maximum entries")
	rootCmd.AddCommand(prefixCmd)
}
