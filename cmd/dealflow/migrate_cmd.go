package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfiguration(g)
			if err != nil {
				return err
			}
			ctx, backend, err := openBackend(cmd.Context(), conf)
			if err != nil {
				return err
			}
			defer backend.Close()
			if err := backend.Migrate(ctx); err != nil {
				return withCode(exitDBWrite, err)
			}
			version, err := backend.SchemaVersion(ctx)
			if err != nil {
				return withCode(exitDB, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d\n", backend.Driver, version)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfiguration(g)
			if err != nil {
				return err
			}
			ctx, backend, err := openBackend(cmd.Context(), conf)
			if err != nil {
				return err
			}
			defer backend.Close()
			version, err := backend.SchemaVersion(ctx)
			if err != nil {
				return withCode(exitDB, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d\n", backend.Driver, version)
			return err
		},
	})
	return cmd
}
