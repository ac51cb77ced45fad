// Package itf provides PostgreSQL fixtures for integration tests. Tests that
// use it are skipped when no server is reachable.
package itf

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iota-uz/dealflow/pkg/configuration"
)

const maxDBNameLength = 63

func options(tb testing.TB) *configuration.DatabaseOptions {
	tb.Helper()
	conf, err := configuration.Load(".env", ".env.local")
	if err != nil {
		tb.Fatalf("load configuration: %v", err)
	}
	return &conf.Database
}

// CanDialPostgres reports whether the configured server accepts TCP connections.
func CanDialPostgres(tb testing.TB) bool {
	tb.Helper()
	opts := options(tb)
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(opts.Port)
	if port == "" {
		port = "5432"
	}

	dialer := &net.Dialer{Timeout: 250 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// DatabaseName turns a test name into a valid PostgreSQL database name.
func DatabaseName(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, name)
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" {
		sanitized = "test_db"
	}
	if len(sanitized) <= maxDBNameLength {
		return sanitized
	}
	hash := fmt.Sprintf("%x", sha256.Sum256([]byte(name)))[:8]
	return sanitized[:maxDBNameLength-len(hash)-1] + "_" + hash
}

// NewDatabase recreates a database named after the test and returns a pool
// connected to it. The pool is closed and the database dropped on cleanup.
func NewDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if !CanDialPostgres(t) {
		t.Skip("postgres is not reachable")
	}
	opts := options(t)
	name := DatabaseName(t.Name())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	admin := *opts
	admin.Name = "postgres"
	conn, err := pgx.Connect(ctx, admin.ConnectionString())
	if err != nil {
		t.Fatalf("connect to admin database: %v", err)
	}
	defer conn.Close(context.Background())
	if _, err := conn.Exec(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{name}.Sanitize()); err != nil {
		t.Fatalf("drop database: %v", err)
	}
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		t.Fatalf("create database: %v", err)
	}

	target := *opts
	target.Name = name
	config, err := pgxpool.ParseConfig(target.ConnectionString())
	if err != nil {
		t.Fatalf("parse pool config: %v", err)
	}
	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		conn, err := pgx.Connect(ctx, admin.ConnectionString())
		if err != nil {
			return
		}
		defer conn.Close(ctx)
		_, _ = conn.Exec(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{name}.Sanitize()+" WITH (FORCE)")
	})
	return pool
}
