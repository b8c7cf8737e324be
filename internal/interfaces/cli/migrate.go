package cli

import (
	"github.com/spf13/cobra"

	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/database/postgres"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

// NewMigrateCmd creates the migrate subcommand, which applies pending schema
// migrations to the corpus database.
func NewMigrateCmd() *cobra.Command {
	var migrationsDir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending corpus database migrations",
		Long: "Migrate connects to the configured PostgreSQL database and applies every\n" +
			"pending schema migration.  Requires database.enabled.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			if !cfg.Database.Enabled {
				return errors.New(errors.ErrCodeValidation, "migrate requires database.enabled in the configuration")
			}

			dir := migrationsDir
			if dir == "" {
				dir = cfg.Database.MigrationPath
			}
			if dir == "" {
				return errors.New(errors.ErrCodeValidation, "no migrations directory: set --dir or database.migration_path")
			}

			conn, err := postgres.NewConnection(cfg.Database, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			if err := conn.RunMigrations(dir); err != nil {
				return err
			}
			return PrintResult(cmd, "migrations applied")
		},
	}

	cmd.Flags().StringVar(&migrationsDir, "dir", "", "migrations directory (default: database.migration_path)")

	return cmd
}
