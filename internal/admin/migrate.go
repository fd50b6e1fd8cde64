package admin

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errNoDatabase = errors.New("database URI is required (--database-uri or DATABASE_URI)")

func newMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.DatabaseURI == "" {
				return errNoDatabase
			}

			store, err := opts.Open(cmd.Context(), opts.DatabaseURI)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
