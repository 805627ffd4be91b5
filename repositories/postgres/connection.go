package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/fact-history/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return Wrap(db, logger), nil
}

// Wrap adopts an already opened pool, e.g. a sqlmock connection in tests
func Wrap(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{
		DB:     db,
		logger: logger,
	}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// InitSchema creates the fact history table and its lookup indexes.
// There is deliberately no foreign key to a facts table: events outlive the facts they describe.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS fact_history (
			id BIGSERIAL PRIMARY KEY,
			event_id VARCHAR(64) NOT NULL,
			fact_id VARCHAR(255) NOT NULL,
			memory_space_id VARCHAR(255) NOT NULL,
			action VARCHAR(16) NOT NULL CHECK (action IN ('CREATE', 'UPDATE', 'SUPERSEDE', 'DELETE')),
			old_value TEXT,
			new_value TEXT,
			supersedes VARCHAR(255),
			superseded_by VARCHAR(255),
			reason TEXT,
			confidence DOUBLE PRECISION,
			pipeline JSONB,
			user_id VARCHAR(255),
			participant_id VARCHAR(255),
			conversation_id VARCHAR(255),
			timestamp BIGINT NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_fact_history_event_id ON fact_history(event_id);
		CREATE INDEX IF NOT EXISTS idx_fact_history_fact_id ON fact_history(fact_id, timestamp);
		CREATE INDEX IF NOT EXISTS idx_fact_history_user_id ON fact_history(user_id);
		CREATE INDEX IF NOT EXISTS idx_fact_history_memory_space_id ON fact_history(memory_space_id);
		CREATE INDEX IF NOT EXISTS idx_fact_history_space_timestamp ON fact_history(memory_space_id, timestamp);
		CREATE INDEX IF NOT EXISTS idx_fact_history_timestamp ON fact_history(timestamp);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize fact history schema: %w", err)
	}

	db.logger.Info("fact history schema initialized successfully")
	return nil
}
