// Package storage provides the local SQLite persistence layer for expense
// records and documents.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3_tachyon"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("contains_fold", containsFold, true)
		},
	})
}

// containsFold reports whether needle occurs in haystack ignoring case.
// SQLite's lower() only folds ASCII, so the comparison runs in Go.
func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStorage implements service.RecordStore and service.DocumentReader using SQLite.
type SQLiteStorage struct {
	db      *sql.DB
	dbPath  string
	timeout time.Duration
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"
	if dbPath == MemoryPath {
		dsn = MemoryPath
	} else {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections, and a single
	// connection keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// SetQueryTimeout bounds every record and document query. Zero disables it.
func (s *SQLiteStorage) SetQueryTimeout(d time.Duration) {
	s.timeout = d
}

// queryContext applies the query timeout to ctx.
func (s *SQLiteStorage) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Path returns the database location the storage was opened with.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SchemaVersion reports the applied migration version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
