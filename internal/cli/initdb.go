package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"specforge/internal/store"
)

// InitDBCommand creates the init-db command.
func InitDBCommand() *cobra.Command {
	var dbConnStr string

	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the pattern catalog schema in PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), dbConnStr)
			if err != nil {
				return err
			}
			defer rt.close()

			pg, ok := rt.store.(*store.PostgresStore)
			if !ok {
				return fmt.Errorf("init-db requires the postgres store; set SPECFORGE_DB_CONN or pass --db")
			}
			if err := pg.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database initialized")
			return nil
		},
	}
	cmd.Flags().StringVar(&dbConnStr, "db", "", "Database connection string (overrides env var)")
	return cmd
}
