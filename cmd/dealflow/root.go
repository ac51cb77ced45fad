package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/dealflow/modules/dealflow"
	"github.com/iota-uz/dealflow/pkg/composables"
	"github.com/iota-uz/dealflow/pkg/configuration"
)

type globalOptions struct {
	envFiles []string
}

func newRootCmd() *cobra.Command {
	var g globalOptions
	cmd := &cobra.Command{
		Use:           "dealflow",
		Short:         "Fund directory import, rollback and API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withCode(exitUsage, err)
	})
	cmd.PersistentFlags().StringSliceVar(&g.envFiles, "env-file", []string{".env", ".env.local"}, "Env files to load before reading configuration")

	cmd.AddCommand(newImportCmd(&g))
	cmd.AddCommand(newRollbackCmd(&g))
	cmd.AddCommand(newMigrateCmd(&g))
	cmd.AddCommand(newServeCmd(&g))
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}

func loadConfiguration(g *globalOptions) (*configuration.Configuration, error) {
	conf, err := configuration.Load(g.envFiles...)
	if err != nil {
		return nil, withCode(exitValidation, err)
	}
	return conf, nil
}

// openBackend connects to the configured database and returns a context
// prepared for repository calls.
func openBackend(ctx context.Context, conf *configuration.Configuration) (context.Context, *dealflow.Backend, error) {
	b, err := dealflow.OpenBackend(ctx, conf.Database)
	if err != nil {
		return ctx, nil, withCode(exitDB, err)
	}
	ctx = composables.WithLogger(ctx, logrus.NewEntry(conf.Logger()))
	return b.Context(ctx), b, nil
}
