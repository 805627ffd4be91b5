// Package sqlite provides the embedded SQLite engine for the fact history store.
// It uses the pure-Go modernc.org/sqlite driver, so no cgo toolchain is needed.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/upb/fact-history/repositories"
	"github.com/upb/fact-history/repositories/sqlite/migrations"
	"github.com/upb/fact-history/repositories/sqlstore"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const pragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// Store owns a SQLite handle with the fact history schema applied
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path and applies embedded migrations.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := path
	if path != MemoryPath {
		dsn = "file:" + filepath.Clean(path) + "?" + pragmas
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// One writer at a time; an in-memory database also lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("sqlite store opened", zap.String("path", path))
	return &Store{db: db, path: path, logger: logger}, nil
}

// OpenInMemory opens a fresh in-memory store
func OpenInMemory(ctx context.Context, logger *zap.Logger) (*Store, error) {
	return Open(ctx, MemoryPath, logger)
}

// NewFactEventRepository returns the fact history repository using SQLite placeholders
func (s *Store) NewFactEventRepository() repositories.FactEventRepository {
	return sqlstore.New(s.db, sqlstore.SQLite, s.logger)
}

// DB exposes the underlying handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the SQLite handle
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.logger.Info("closing sqlite store", zap.String("path", s.path))
	return s.db.Close()
}
