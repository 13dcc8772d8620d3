package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mayhapottabi/docchat/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.Driver == "memory" {
		fmt.Fprintln(cmd.OutOrStdout(), "Database driver is memory; nothing to migrate")
		return nil
	}

	database, err := db.New(cmd.Context(), cfg.Database.ConnectionString, db.Options{
		MaxConns: 1,
		Timeout:  cfg.DatabaseTimeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Migrations completed successfully")
	return nil
}
