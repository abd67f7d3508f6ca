package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"specforge/internal/store"
)

// SeedCatalogCommand creates the seed-catalog command.
func SeedCatalogCommand() *cobra.Command {
	var dbConnStr string

	cmd := &cobra.Command{
		Use:   "seed-catalog",
		Short: "Load the builtin patterns into the catalog",
		Long: `Seed-catalog inserts the builtin pattern library and its per-language
implementations. Existing patterns are left untouched, so re-running is
safe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), dbConnStr)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := store.Seed(cmd.Context(), rt.store); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "catalog seeded")
			return nil
		},
	}
	cmd.Flags().StringVar(&dbConnStr, "db", "", "Database connection string (overrides env var)")
	return cmd
}
