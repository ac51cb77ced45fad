package dealflow

import (
	"context"
	"database/sql"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/iota-uz/dealflow/migrations"
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/fund"
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/organization"
	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/person"
	"github.com/iota-uz/dealflow/modules/dealflow/infrastructure/persistence"
	"github.com/iota-uz/dealflow/modules/dealflow/infrastructure/sqlite"
	"github.com/iota-uz/dealflow/pkg/composables"
	"github.com/iota-uz/dealflow/pkg/configuration"
	"github.com/iota-uz/dealflow/pkg/repo"
)

// Backend bundles the repositories of one storage driver.
type Backend struct {
	Driver        string
	Transactor    repo.Transactor
	Organizations organization.Repository
	Funds         fund.Repository
	Persons       person.Repository

	db     *sql.DB
	attach func(context.Context) context.Context
	close  func() error
}

// OpenBackend connects to the database selected by opts.Driver.
func OpenBackend(ctx context.Context, opts configuration.DatabaseOptions) (*Backend, error) {
	switch opts.Driver {
	case configuration.DriverSQLite:
		store, err := sqlite.Open(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewSQLiteBackend(store), nil
	case configuration.DriverPostgres:
		pool, err := pgxpool.New(ctx, opts.ConnectionString())
		if err != nil {
			return nil, gerrors.Wrap(err, "connect to postgres")
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, gerrors.Wrap(err, "connect to postgres")
		}
		return NewPostgresBackend(pool), nil
	default:
		return nil, gerrors.Errorf("unsupported driver: %s", opts.Driver)
	}
}

func NewSQLiteBackend(store *sqlite.Store) *Backend {
	return &Backend{
		Driver:        configuration.DriverSQLite,
		Transactor:    store,
		Organizations: sqlite.NewOrganizationRepository(store),
		Funds:         sqlite.NewFundRepository(store),
		Persons:       sqlite.NewPersonRepository(store),
		db:            store.DB(),
		attach:        func(ctx context.Context) context.Context { return ctx },
		close:         store.Close,
	}
}

func NewPostgresBackend(pool *pgxpool.Pool) *Backend {
	db := stdlib.OpenDBFromPool(pool)
	return &Backend{
		Driver:        configuration.DriverPostgres,
		Transactor:    composables.PoolTransactor{Pool: pool},
		Organizations: persistence.NewOrganizationRepository(),
		Funds:         persistence.NewFundRepository(),
		Persons:       persistence.NewPersonRepository(),
		db:            db,
		attach: func(ctx context.Context) context.Context {
			return composables.WithPool(ctx, pool)
		},
		close: func() error {
			err := db.Close()
			pool.Close()
			return err
		},
	}
}

// Context prepares ctx for repository calls.
func (b *Backend) Context(ctx context.Context) context.Context {
	return b.attach(ctx)
}

// Migrate applies pending schema migrations.
func (b *Backend) Migrate(ctx context.Context) error {
	return migrations.Up(ctx, b.db, b.Driver)
}

func (b *Backend) SchemaVersion(ctx context.Context) (int64, error) {
	return migrations.Version(ctx, b.db, b.Driver)
}

func (b *Backend) Close() error {
	return b.close()
}
