package postgres

import (
	"context"

	"github.com/upb/fact-history/config"
	"github.com/upb/fact-history/repositories"
	"github.com/upb/fact-history/repositories/sqlstore"
	"go.uber.org/zap"
)

// RepositoryFactory owns the PostgreSQL pool and hands out repositories bound to it
type RepositoryFactory struct {
	db     *DB
	logger *zap.Logger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return NewRepositoryFactoryFromDB(db, logger), nil
}

// NewRepositoryFactoryFromDB builds a factory around an existing pool
func NewRepositoryFactoryFromDB(db *DB, logger *zap.Logger) *RepositoryFactory {
	return &RepositoryFactory{db: db, logger: logger}
}

// InitSchema creates the fact history table if needed
func (f *RepositoryFactory) InitSchema(ctx context.Context) error {
	return f.db.InitSchema(ctx)
}

// NewFactEventRepository returns the fact history repository using PostgreSQL placeholders
func (f *RepositoryFactory) NewFactEventRepository() repositories.FactEventRepository {
	return sqlstore.New(f.db.DB, sqlstore.Postgres, f.logger)
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
