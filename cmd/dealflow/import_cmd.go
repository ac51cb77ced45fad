package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/dealflow/modules/dealflow/importer"
	"github.com/iota-uz/dealflow/pkg/configuration"
	"github.com/iota-uz/dealflow/pkg/eventbus"
	"github.com/iota-uz/dealflow/pkg/metrics"
	"github.com/iota-uz/dealflow/pkg/tabular"
)

type importOptions struct {
	input           string
	sheet           string
	layout          string
	outputDir       string
	fundPolicy      string
	top             int
	apply           bool
	json            bool
	migrate         bool
	metricsTextfile string
}

func newImportCmd(g *globalOptions) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a fund directory from a CSV or XLSX file",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfiguration(g)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("fund-policy") {
				opts.fundPolicy = conf.Import.FundPolicy
			}
			if !cmd.Flags().Changed("top") {
				opts.top = conf.Import.TopK
			}
			return runImport(cmd.Context(), cmd.OutOrStdout(), conf, opts)
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "Source file, .csv or .xlsx (required)")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "Workbook sheet (default: first sheet)")
	cmd.Flags().StringVar(&opts.layout, "layout", "", "YAML column layout overriding the default headers")
	cmd.Flags().StringVar(&opts.outputDir, "output", "", "Output directory for the manifest (default: input dir)")
	cmd.Flags().StringVar(&opts.fundPolicy, "fund-policy", "append", "Fund policy: append|skip-existing")
	cmd.Flags().IntVar(&opts.top, "top", importer.DefaultTopK, "Number of organizations in the summary ranking")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Apply changes to DB (default is dry-run)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the plan or summary as JSON")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", true, "Apply pending schema migrations first")
	cmd.Flags().StringVar(&opts.metricsTextfile, "metrics-textfile", "", "Write run metrics in Prometheus text format to this file")

	return cmd
}

func runImport(ctx context.Context, out io.Writer, conf *configuration.Configuration, opts importOptions) error {
	if strings.TrimSpace(opts.input) == "" {
		return withCode(exitUsage, errors.New("--input is required"))
	}
	if opts.top < 1 {
		return withCode(exitUsage, errors.Errorf("invalid --top: %d", opts.top))
	}
	policy, err := importer.ParseFundPolicy(opts.fundPolicy)
	if err != nil {
		return withCode(exitUsage, err)
	}
	layout := importer.DefaultLayout()
	if opts.layout != "" {
		if layout, err = importer.LoadLayout(opts.layout); err != nil {
			return withCode(exitValidation, err)
		}
	}
	table, err := tabular.ReadFile(opts.input, opts.sheet)
	if err != nil {
		return withCode(exitValidation, err)
	}

	ctx, backend, err := openBackend(ctx, conf)
	if err != nil {
		return err
	}
	defer backend.Close()
	if opts.migrate {
		if err := backend.Migrate(ctx); err != nil {
			return withCode(exitDB, err)
		}
	}

	logger := conf.Logger()
	bus := eventbus.NewEventPublisher(logger)
	subscribeImportEvents(bus, logrus.NewEntry(logger))
	reg := prometheus.NewRegistry()
	im := importer.New(backend.Transactor, backend.Organizations, backend.Funds, importer.Options{
		OrganizationBatchSize: conf.Import.OrganizationBatchSize,
		FundBatchSize:         conf.Import.FundBatchSize,
		TopK:                  opts.top,
		FundPolicy:            policy,
		Layout:                &layout,
		Metrics:               metrics.NewImportMetrics(reg),
		Publisher:             bus,
	})

	if !opts.apply {
		plan, err := im.Plan(ctx, table)
		if err != nil {
			return classifyImportError(err)
		}
		if opts.json {
			return writeJSONLine(out, plan)
		}
		return plan.WriteText(out)
	}

	summary, runErr := im.Run(ctx, table)
	if opts.metricsTextfile != "" {
		if err := prometheus.WriteToTextfile(opts.metricsTextfile, reg); err != nil {
			logger.WithError(err).Warn("failed to write metrics textfile")
		}
	}

	dir := opts.outputDir
	if dir == "" {
		dir = filepath.Dir(opts.input)
	}
	if runErr != nil {
		var rerr *importer.RunError
		if errors.As(runErr, &rerr) && rerr.Manifest != nil {
			path, err := importer.WriteManifest(dir, rerr.Manifest)
			if err != nil {
				logger.WithError(err).Error("failed to write manifest")
			} else {
				fmt.Fprintf(out, "manifest: %s\n", path)
			}
		}
		return classifyImportError(runErr)
	}

	path, err := importer.WriteManifest(dir, summary.Manifest)
	if err != nil {
		return withCode(exitUnknown, err)
	}
	summary.ManifestPath = path
	if opts.json {
		return writeJSONLine(out, summary)
	}
	if err := summary.WriteText(out); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "\nmanifest: %s\n", path)
	return err
}

func classifyImportError(err error) error {
	var cfgErr *importer.ConfigError
	var runErr *importer.RunError
	switch {
	case errors.As(err, &cfgErr):
		return withCode(exitValidation, err)
	case errors.As(err, &runErr):
		return withCode(exitDBWrite, err)
	default:
		return withCode(exitDB, err)
	}
}

func subscribeImportEvents(bus eventbus.EventBus, log *logrus.Entry) {
	bus.Subscribe(func(e *importer.OrganizationCreatedEvent) {
		log.WithFields(logrus.Fields{"run-id": e.RunID, "organization": e.Organization.Name()}).Debug("organization created")
	})
	bus.Subscribe(func(e *importer.ImportCompletedEvent) {
		log.WithField("run-id", e.RunID).Debug("import completed event")
	})
	bus.Subscribe(func(e *importer.ImportAbortedEvent) {
		log.WithField("run-id", e.RunID).WithError(e.Err).Debug("import aborted event")
	})
}
