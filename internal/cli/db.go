package cli

import (
	"errors"
	"fmt"

	"github.com/law-makers/shopscrape/internal/ui"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the product database",
}

var dbInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Create the products table and indexes",
	Annotations: map[string]string{needsApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := mustApp(cmd)
		if err != nil {
			return err
		}
		if a.Store == nil {
			return errors.New("no database configured (set SHOPSCRAPE_DATABASE_DSN or `shopscrape credentials set database-dsn`)")
		}
		if err := a.Store.EnsureSchema(cmd.Context()); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("✓ Database schema ready"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbInitCmd)
}
