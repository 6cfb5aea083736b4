package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/tcl-live/backend/internal/logging"
)

// Supported dialects
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// The schema files are the single source of truth for table layout.
//
//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

// Options configures Open
type Options struct {
	Driver string // "sqlite" or "postgres"
	DSN    string
	Logger *slog.Logger
}

// DB wraps a database connection with write serialization
type DB struct {
	conn    *sql.DB
	dialect string
	logger  *slog.Logger
	writeMu sync.Mutex // Serializes write transactions; SQLite allows one writer at a time
}

// Open connects to the store selected by opts.Driver and pings it
func Open(ctx context.Context, opts Options) (*DB, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		conn *sql.DB
		err  error
	)
	switch opts.Driver {
	case DialectSQLite, "":
		dsn := opts.DSN
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
		}
		conn, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// SQLite only supports one writer at a time
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(time.Hour)
		opts.Driver = DialectSQLite
	case DialectPostgres:
		conn, err = sql.Open("pgx", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(30 * time.Minute)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("connected to database", slog.String("driver", opts.Driver))
	return &DB{conn: conn, dialect: opts.Driver, logger: logger}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying connection for read-side repositories
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Dialect reports which SQL dialect the handle speaks
func (db *DB) Dialect() string {
	return db.dialect
}

// Rebind rewrites ? placeholders into the dialect's bind syntax
func (db *DB) Rebind(query string) string {
	return Rebind(db.dialect, query)
}

// Rebind rewrites ? placeholders to $1, $2, ... for Postgres and leaves
// SQLite queries untouched.
func Rebind(dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
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

// EnsureSchema creates tables and indexes if they don't exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if _, err := db.conn.ExecContext(ctx, SchemaSQL(db.dialect)); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	db.logger.Debug("database schema ensured", slog.String("dialect", db.dialect))
	return nil
}

// SchemaSQL returns the embedded DDL for a dialect
func SchemaSQL(dialect string) string {
	if dialect == DialectPostgres {
		return postgresSchema
	}
	return sqliteSchema
}

// withTx runs fn inside a serialized write transaction
func (db *DB) withTx(ctx context.Context, operation string, fn func(tx *sql.Tx) error) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer logging.SafeRollback(tx, db.logger, operation)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", operation, err)
	}
	return nil
}

func (db *DB) prepare(ctx context.Context, tx *sql.Tx, query string) (*sql.Stmt, error) {
	return tx.PrepareContext(ctx, db.Rebind(query))
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
