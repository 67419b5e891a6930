package main

import (
	"article-service/internal/app"
	"article-service/internal/config"
	"article-service/internal/logger"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "articlectl",
		Short: "Administer the article service database",
		Long: `articlectl runs maintenance tasks against the article database
configured through the same .env and environment variables as the server.

Commands:
  migrate          - migrate the schema and seed renderers and the admin account
  backup export    - write every page and revision as a JSON backup
  backup import    - replace every page with the contents of a backup`,
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCmd(), newBackupCmd())
	return root
}

// openApp loads configuration and connects like the server does.
func openApp(cmd *cobra.Command) (*app.App, error) {
	config.LoadConfig()
	logger.Setup(config.AppConfig.Environment)
	return app.New(cmd.Context(), config.AppConfig)
}
