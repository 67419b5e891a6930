package main

import (
	"article-service/internal/db"
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the schema and seed renderers and the admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := db.Migrate(a.DB); err != nil {
				return err
			}
			if err := db.SeedAdmin(a.DB, a.Config.AdminEmail, a.Config.AdminPassword); err != nil {
				return fmt.Errorf("seed admin: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}
