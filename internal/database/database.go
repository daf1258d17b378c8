package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/datahubgov/govhub/internal/config"
)

// Querier is the subset of operations the governance stores need from the
// database layer. *DB implements it; tests substitute mocks.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Upsert(ctx context.Context, table string, columns []string, keyColumns []string, args ...interface{}) error
	CreateTable(ctx context.Context, table string, body string) error
	Quote(name string) string
	Ping(ctx context.Context) error
	Close() error
}

var _ Querier = (*DB)(nil)

// DB holds the database connection pool and dialect handler.
type DB struct {
	Pool    *sql.DB
	Handler DialectHandler
	Config  config.DatabaseConfig
}

// ColumnInfo holds basic information about a database column.
type ColumnInfo struct {
	Name     string
	DataType string
}

// DialectHandler abstracts the per-RDBMS pieces: pool creation, identifier
// quoting, placeholder style, upsert syntax and DDL type names.
type DialectHandler interface {
	CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error)
	CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error)
	QuoteIdentifier(name string) string
	// Rebind converts a query written with ? placeholders into the dialect's
	// placeholder style.
	Rebind(query string) string
	// UpsertSQL returns an insert-or-update statement for the given table with
	// one ? placeholder per column. keyColumns identify the conflict target.
	UpsertSQL(table string, columns []string, keyColumns []string) string
	// CreateTableSQL wraps a column-definition body in the dialect's
	// create-if-absent form.
	CreateTableSQL(table string, body string) string
	// DDLType maps a portable type token (TEXT, DATETIME, BOOL, FLOAT, JSON)
	// to the dialect's column type.
	DDLType(token string) string
	ListTables(db *DB) ([]string, error)
	ListColumns(db *DB, tableName string) ([]ColumnInfo, error)
}

var (
	dialectHandlers = make(map[string]DialectHandler)
	mu              sync.RWMutex
)

func RegisterDialectHandler(dialect string, handler DialectHandler) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := dialectHandlers[dialect]; exists {
		log.Printf("WARN: Dialect handler for '%s' is being overwritten.", dialect)
	}
	dialectHandlers[dialect] = handler
}

func GetDialectHandler(dialect string) (DialectHandler, error) {
	mu.RLock()
	defer mu.RUnlock()
	handler, ok := dialectHandlers[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported database dialect: %s", dialect)
	}
	return handler, nil
}

func New(cfg config.DatabaseConfig) (*DB, error) {
	handler, err := GetDialectHandler(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	var pool *sql.DB
	if strings.HasPrefix(cfg.Dialect, "cloudsql") {
		pool, err = handler.CreateCloudSQLPool(cfg)
	} else {
		pool, err = handler.CreateStandardPool(cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create database pool for dialect %s: %w", cfg.Dialect, err)
	}

	ctx := context.Background()
	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database (ping failed) for dialect %s: %w", cfg.Dialect, err)
	}

	return &DB{
		Pool:    pool,
		Handler: handler,
		Config:  cfg,
	}, nil
}

// NewWithPool wraps an existing pool with a handler. Used by tests with sqlmock.
func NewWithPool(pool *sql.DB, handler DialectHandler, cfg config.DatabaseConfig) *DB {
	return &DB{Pool: pool, Handler: handler, Config: cfg}
}

func (db *DB) GetConfig() config.DatabaseConfig {
	return db.Config
}

func (db *DB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	return db.Pool.PingContext(ctx)
}

func (db *DB) Close() error {
	if db.Pool != nil {
		return db.Pool.Close()
	}
	log.Println("WARN: Attempted to close a nil database connection pool.")
	return nil
}

// QueryContext rebinds ? placeholders for the dialect and runs the query.
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.Pool.QueryContext(ctx, db.Handler.Rebind(query), args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.Pool.QueryRowContext(ctx, db.Handler.Rebind(query), args...)
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return db.Pool.ExecContext(ctx, db.Handler.Rebind(query), args...)
}

// Upsert inserts a row into table, replacing the existing row that matches
// keyColumns. args must line up with columns.
func (db *DB) Upsert(ctx context.Context, table string, columns []string, keyColumns []string, args ...interface{}) error {
	if len(args) != len(columns) {
		return fmt.Errorf("upsert into %s: %d args for %d columns", table, len(args), len(columns))
	}
	query := db.Handler.Rebind(db.Handler.UpsertSQL(table, columns, keyColumns))
	if _, err := db.Pool.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert into %s: %w", table, err)
	}
	return nil
}

// Quote escapes an identifier for interpolation into dynamic SQL.
func (db *DB) Quote(name string) string {
	return db.Handler.QuoteIdentifier(name)
}

// CreateTable creates the table if it does not exist. body uses portable type
// tokens ({TEXT}, {DATETIME}, {BOOL}, {FLOAT}, {JSON}) expanded per dialect.
func (db *DB) CreateTable(ctx context.Context, table string, body string) error {
	stmt := db.Handler.CreateTableSQL(table, ExpandDDLTypes(db.Handler, body))
	if _, err := db.Pool.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

func (db *DB) ListTables() ([]string, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListTables(db)
}

func (db *DB) ListColumns(tableName string) ([]ColumnInfo, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListColumns(db, tableName)
}

// ExecuteSQLStatements runs the statements inside a single transaction.
func (db *DB) ExecuteSQLStatements(ctx context.Context, sqlStatements []string) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	if len(sqlStatements) == 0 {
		log.Println("INFO: No SQL statements provided to ExecuteSQLStatements.")
		return nil
	}

	tx, err := db.Pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range sqlStatements {
		trimmedStmt := strings.TrimSpace(stmt)
		if trimmedStmt == "" {
			continue
		}
		if _, err = tx.ExecContext(ctx, trimmedStmt); err != nil {
			return fmt.Errorf("failed executing statement #%d: %w", i+1, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
