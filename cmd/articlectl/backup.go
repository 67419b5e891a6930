package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	backup := &cobra.Command{
		Use:   "backup",
		Short: "Export or restore article backups",
	}
	backup.AddCommand(newExportCmd(), newImportCmd())
	return backup
}

func newExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every page and revision as JSON",
		Long: `Write every page and revision as JSON.

Examples:
  articlectl backup export                  # print to stdout
  articlectl backup export --out pages.json # write to a file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := a.Articles.Export(cmd.Context())
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newImportCmd() *cobra.Command {
	var (
		in    string
		email string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace every page with the contents of a backup",
		Long: `Replace every page with the contents of a backup. Existing pages,
revisions, tags and votes are deleted first.

Revisions whose author no longer exists are attributed to the --as user.

Examples:
  articlectl backup import --in pages.json --as admin@example.com
  cat pages.json | articlectl backup import --in - --as admin@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, in)
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			importer, err := a.Users.GetUserByEmail(cmd.Context(), email)
			if err != nil {
				return fmt.Errorf("importing user %s: %w", email, err)
			}
			if err := a.Articles.Import(cmd.Context(), data, importer); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "backup restored")
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "backup file, - for stdin")
	cmd.Flags().StringVar(&email, "as", "", "email of the user performing the import")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
