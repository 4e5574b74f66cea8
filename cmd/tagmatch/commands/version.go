package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/tagmatch/cmd/tagmatch/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	// The version never depends on a readable config file.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("output") || jqQuery != "" {
			return output(cmd, build.Get())
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), build.String())
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
