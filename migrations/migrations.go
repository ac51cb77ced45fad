// Package migrations embeds the schema for every supported storage driver.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql
var embedMigrations embed.FS

// goose keeps its base FS and dialect in package state.
var mu sync.Mutex

func setup(driver string) (string, error) {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	switch driver {
	case "postgres":
		return "postgres", goose.SetDialect("postgres")
	case "sqlite":
		return "sqlite", goose.SetDialect("sqlite3")
	default:
		return "", fmt.Errorf("unsupported driver: %s", driver)
	}
}

// Up applies every pending migration for driver ("postgres" or "sqlite").
func Up(ctx context.Context, db *sql.DB, driver string) error {
	mu.Lock()
	defer mu.Unlock()

	dir, err := setup(driver)
	if err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("unable to run migrations: %w", err)
	}
	return nil
}

// Version reports the applied schema version.
func Version(ctx context.Context, db *sql.DB, driver string) (int64, error) {
	mu.Lock()
	defer mu.Unlock()

	if _, err := setup(driver); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db)
}
