// Package db opens the record store and applies the embedded schema
// migrations. SQLite is used for local runs and PostgreSQL for hosted ones;
// both share one schema and the same `?` placeholder style in queries.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type DB struct {
	conn   *sql.DB
	driver string
	logger *slog.Logger
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Open connects to the database named by driver and dsn. For SQLite the dsn is
// a file path whose directory is created on demand.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*DB, error) {
	switch driver {
	case DriverSQLite, "":
		return New(dsn, logger)
	case DriverPostgres:
		conn, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := conn.PingContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return setup(ctx, conn, DriverPostgres, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// New opens (or creates) a SQLite database at dbPath.
func New(dbPath string, logger *slog.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return setup(context.Background(), conn, DriverSQLite, logger)
}

func setup(ctx context.Context, conn *sql.DB, driver string, logger *slog.Logger) (*DB, error) {
	db := &DB{conn: conn, driver: driver, logger: logger}

	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if n, err := db.markInterruptedUploads(ctx); err != nil {
		if logger != nil {
			logger.Warn("failed to mark interrupted uploads", "error", err)
		}
	} else if n > 0 && logger != nil {
		logger.Info("marked interrupted uploads as failed", "count", n)
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Driver reports which backend the connection talks to.
func (d *DB) Driver() string {
	return d.driver
}

// Rebind rewrites `?` placeholders into the numbered form PostgreSQL expects.
// Queries for SQLite are returned unchanged.
func (d *DB) Rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d *DB) migrate(ctx context.Context) error {
	dialect := "sqlite3"
	if d.driver == DriverPostgres {
		dialect = "postgres"
	}

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{d.logger})
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return gooseUpContext(ctx, d.conn, "migrations")
}

func (d *DB) markInterruptedUploads(ctx context.Context) (int64, error) {
	res, err := d.conn.ExecContext(ctx, d.Rebind(
		`UPDATE uploads SET phase = 'failed', message = 'interrupted by restart', updated_at = ? WHERE phase = 'uploading'`),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// gooseLogger routes migration output through the service logger.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	if l.logger != nil {
		l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrations")
	}
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	if l.logger != nil {
		l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrations")
	}
}
