package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"thermal-annotator/internal/store/sqlite"
)

func newMigrateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect or roll back the database schema",
		Long: `Opening the database applies pending migrations, so "migrate up" only
reports the resulting version.`,
	}

	report := func(cmd *cobra.Command, db *sqlite.Store) error {
		v, dirty, err := sqlite.MigrateVersion(db.DB())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", v, dirty)
		return nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := opts.openSQLite()
				if err != nil {
					return err
				}
				defer db.Close()
				if err := sqlite.MigrateUp(db.DB()); err != nil {
					return err
				}
				return report(cmd, db)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := opts.openSQLite()
				if err != nil {
					return err
				}
				defer db.Close()
				if err := sqlite.MigrateDown(db.DB()); err != nil {
					return err
				}
				return report(cmd, db)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := opts.openSQLite()
				if err != nil {
					return err
				}
				defer db.Close()
				return report(cmd, db)
			},
		},
	)
	return cmd
}
