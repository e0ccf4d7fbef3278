package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arnold/tribes-api/internal/config"
	"github.com/arnold/tribes-api/internal/database"
	"github.com/arnold/tribes-api/internal/logging"
)

func newMigrateCommand(load func() (*config.Config, error)) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long:  `Runs the schema migration against DATABASE_URL. With --dry-run the migration is applied to a throwaway in-memory database instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			defer logging.Sync()

			if dryRun {
				if _, err := database.OpenMemory(); err != nil {
					return fmt.Errorf("dry run: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema ok (dry run)")
				return nil
			}

			db, err := database.Connect(cfg)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "migrate an in-memory database only")
	return cmd
}
