package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mathrag/internal/app"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the discrete math index",
	Long: `Loads the configured document, chunks it, embeds every chunk and
replaces the stored collection. Existing storage for the collection is
overwritten.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	report, err := app.Rebuild(cmd.Context(), appConfig, &appLogger)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), report.String())
	return nil
}
