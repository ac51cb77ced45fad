package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/iota-uz/dealflow/modules/dealflow/importer"
	"github.com/iota-uz/dealflow/pkg/configuration"
)

type rollbackOptions struct {
	manifestPath string
	apply        bool
	yes          bool
	json         bool
}

func newRollbackCmd(g *globalOptions) *cobra.Command {
	var opts rollbackOptions

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Undo an applied import by its manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfiguration(g)
			if err != nil {
				return err
			}
			return runRollback(cmd.Context(), cmd.OutOrStdout(), conf, opts)
		},
	}

	cmd.Flags().StringVar(&opts.manifestPath, "manifest", "", "Path to import_manifest_*.json (required)")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Apply rollback (default is dry-run)")
	cmd.Flags().BoolVar(&opts.yes, "yes", false, "Confirm destructive rollback")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the result as JSON")

	return cmd
}

type rollbackReport struct {
	Status   string                   `json:"status"`
	RunID    string                   `json:"run_id"`
	Manifest importer.ManifestCounts  `json:"manifest"`
	Result   *importer.RollbackResult `json:"result,omitempty"`
}

func runRollback(ctx context.Context, out io.Writer, conf *configuration.Configuration, opts rollbackOptions) error {
	if strings.TrimSpace(opts.manifestPath) == "" {
		return withCode(exitUsage, errors.New("--manifest is required"))
	}
	m, err := importer.ReadManifest(opts.manifestPath)
	if err != nil {
		return withCode(exitValidation, err)
	}
	report := rollbackReport{Status: "dry_run", RunID: m.RunID, Manifest: m.Summary}
	if !opts.apply {
		return printRollback(out, report, opts.json)
	}
	if !opts.yes {
		return withCode(exitSafetyNet, errors.New("refusing to rollback without --yes"))
	}

	ctx, backend, err := openBackend(ctx, conf)
	if err != nil {
		return err
	}
	defer backend.Close()

	res, err := importer.Rollback(ctx, backend.Transactor, backend.Organizations, backend.Funds, m)
	if err != nil {
		return withCode(exitDBWrite, err)
	}
	report.Status = "applied"
	report.Result = res
	return printRollback(out, report, opts.json)
}

func printRollback(out io.Writer, r rollbackReport, asJSON bool) error {
	if asJSON {
		return writeJSONLine(out, r)
	}
	fmt.Fprintf(out, "rollback %s (run %s)\n", r.Status, r.RunID)
	if r.Result == nil {
		_, err := fmt.Fprintf(out, "would delete %d funds and up to %d organizations\n",
			r.Manifest.FundsInserted, r.Manifest.OrganizationsCreated)
		return err
	}
	_, err := fmt.Fprintf(out, "deleted %d funds, %d organizations; kept %d; recounted %d\n",
		r.Result.FundsDeleted, r.Result.OrganizationsDeleted, len(r.Result.OrganizationsKept), r.Result.OrganizationsRecounted)
	return err
}
