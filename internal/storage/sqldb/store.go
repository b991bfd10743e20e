// Package sqldb is the durable SQL tier: conversation turn persistence and
// the domain tables the pipeline fetches context from.
package sqldb

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/ports"
	"github.com/tjfontaine/polyglot-query-gateway/internal/storage/dialect"
)

// DefaultFetchLimit bounds the rows read per domain fetch.
const DefaultFetchLimit = 500

// Store is a SQL implementation of TurnPersistence and Fetcher that
// supports multiple database dialects.
type Store struct {
	db         *sqlx.DB
	dialect    dialect.Dialect
	fetchLimit int
}

var (
	_ ports.TurnPersistence = (*Store)(nil)
	_ ports.Fetcher         = (*Store)(nil)
)

// Config holds database connection configuration
type Config struct {
	Driver string // Driver name: sqlite, postgres
	DSN    string // Data source name / connection string

	// FetchLimit caps rows per domain fetch; zero means DefaultFetchLimit.
	FetchLimit int
}

// New creates a new SQL store with the specified configuration.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Run dialect-specific initialization (e.g., PRAGMA for SQLite)
	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	limit := cfg.FetchLimit
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	store := &Store{db: db, dialect: d, fetchLimit: limit}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite creates a new SQLite store.
func NewSQLite(dbPath string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dbPath})
}

// DB returns the underlying sqlx.DB for advanced operations
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the dialect being used
func (s *Store) Dialect() dialect.Dialect {
	return s.dialect
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	ts := s.dialect.TimestampType()
	num := s.dialect.RealType()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversation_turns (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			message TEXT NOT NULL,
			answer TEXT NOT NULL DEFAULT '',
			intent TEXT NOT NULL,
			domains_used TEXT NOT NULL DEFAULT '[]',
			sources TEXT NOT NULL DEFAULT '[]',
			confidence ` + num + ` NOT NULL DEFAULT 0,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			unit TEXT NOT NULL DEFAULT '',
			price BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS inventory (
			product_code TEXT NOT NULL,
			product_name TEXT NOT NULL,
			warehouse_code TEXT NOT NULL,
			quantity ` + num + ` NOT NULL DEFAULT 0,
			unit TEXT NOT NULL DEFAULT '',
			min_stock ` + num + ` NOT NULL DEFAULT 0,
			PRIMARY KEY (product_code, warehouse_code)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			code TEXT PRIMARY KEY,
			customer_code TEXT NOT NULL,
			customer_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			total BIGINT NOT NULL DEFAULT 0,
			item_count INTEGER NOT NULL DEFAULT 0,
			order_date ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			tier TEXT NOT NULL DEFAULT '',
			order_count INTEGER NOT NULL DEFAULT 0,
			total_spent BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS suppliers (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			product_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS price_lists (
			code TEXT PRIMARY KEY,
			list_name TEXT NOT NULL,
			product_code TEXT NOT NULL,
			product_name TEXT NOT NULL DEFAULT '',
			price BIGINT NOT NULL DEFAULT 0,
			min_quantity ` + num + ` NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS warehouses (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			capacity ` + num + ` NOT NULL DEFAULT 0,
			used ` + num + ` NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_user_created ON conversation_turns(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_conversation ON conversation_turns(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_date ON orders(order_date)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(s.dialect.Rebind(stmt)); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	// Run migrations for existing databases - add columns that may not exist
	return s.runMigrations()
}

func (s *Store) runMigrations() error {
	migrations := []struct {
		table  string
		column string
		ddl    string
	}{
		{"conversation_turns", "response_time_ms", "ALTER TABLE conversation_turns ADD COLUMN response_time_ms INTEGER NOT NULL DEFAULT 0"},
	}

	for _, m := range migrations {
		exists, err := s.columnExists(m.table, m.column)
		if err != nil {
			return fmt.Errorf("failed to check column %s.%s: %w", m.table, m.column, err)
		}
		if !exists {
			if _, err := s.db.Exec(s.dialect.Rebind(m.ddl)); err != nil {
				return fmt.Errorf("failed to add column %s.%s: %w", m.table, m.column, err)
			}
		}
	}

	return nil
}

func (s *Store) columnExists(table, column string) (bool, error) {
	var count int
	if err := s.db.QueryRow(s.dialect.ColumnExistsQuery(), table, column).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// placeholders returns n comma-separated ? markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
