package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iota-uz/dealflow/modules/dealflow"
	"github.com/iota-uz/dealflow/modules/dealflow/presentation/controllers"
	"github.com/iota-uz/dealflow/pkg/application"
	"github.com/iota-uz/dealflow/pkg/configuration"
	"github.com/iota-uz/dealflow/pkg/eventbus"
	"github.com/iota-uz/dealflow/pkg/logging"
	"github.com/iota-uz/dealflow/pkg/metrics"
	"github.com/iota-uz/dealflow/pkg/middleware"
	"github.com/iota-uz/dealflow/pkg/server"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the organization and fund HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfiguration(g)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, conf, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply pending schema migrations before serving")
	return cmd
}

func buildApplication(conf *configuration.Configuration, backend *dealflow.Backend) (application.Application, error) {
	logger := conf.Logger()
	app := application.New(&application.ApplicationOptions{
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})

	logOpts := middleware.DefaultLoggerOptions()
	logOpts.RequestIDHeader = conf.RequestIDHeader
	app.RegisterMiddleware(
		middleware.WithLogger(logger, logOpts),
		middleware.TracedMiddleware("cors"),
		middleware.Cors(conf.CorsAllowedOrigins...),
	)
	if conf.RateLimit.Enabled {
		app.RegisterMiddleware(
			middleware.TracedMiddleware("rateLimit"),
			middleware.RateLimit(middleware.RateLimitConfig{
				RequestsPerPeriod: conf.RateLimit.GlobalRPS,
				Store:             middleware.NewMemoryStore(),
			}),
		)
	}

	module := dealflow.NewModule(backend, controllers.PageOptions{Default: conf.PageSize, Max: conf.MaxPageSize})
	if err := module.Register(app); err != nil {
		return nil, err
	}
	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path, nil))
	}
	return app, nil
}

func runServe(ctx context.Context, conf *configuration.Configuration, migrate bool) error {
	logger := conf.Logger()
	if conf.OpenTelemetry.Enabled {
		cleanup := logging.SetupTracing(ctx, conf.OpenTelemetry.ServiceName, conf.OpenTelemetry.TempoURL)
		defer cleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to Tempo at " + conf.OpenTelemetry.TempoURL)
	}

	ctx, backend, err := openBackend(ctx, conf)
	if err != nil {
		return err
	}
	defer backend.Close()
	if migrate {
		if err := backend.Migrate(ctx); err != nil {
			return withCode(exitDBWrite, err)
		}
	}

	app, err := buildApplication(conf, backend)
	if err != nil {
		return err
	}
	logger.Infof("Listening on: %s", conf.SocketAddress)
	if err := server.NewHTTPServer(app).Serve(ctx, conf.SocketAddress); err != nil {
		return withCode(exitUnknown, err)
	}
	return nil
}
