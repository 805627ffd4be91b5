package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/fact-history/config"
	"github.com/upb/fact-history/models"
	"github.com/upb/fact-history/services/history"
	"go.uber.org/zap/zaptest"
)

func TestNewDependencies(t *testing.T) {
	t.Run("sqlite engine wires every component", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(ctx, cfg, logger)
		require.NoError(t, err)
		require.NotNil(t, deps)

		assert.NotNil(t, deps.Config)
		assert.NotNil(t, deps.Logger)
		assert.NotNil(t, deps.SQLite)
		assert.Nil(t, deps.RepoFactory)
		assert.NotNil(t, deps.Events)
		assert.NotNil(t, deps.History)
		assert.NotNil(t, deps.AuthMiddleware)
		assert.Nil(t, deps.Retention)

		res, err := deps.History.Append(ctx, history.AppendInput{
			FactID:        "fact-1",
			MemorySpaceID: "space-1",
			Action:        models.ActionCreate,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, res.EventID)
		assert.NoError(t, deps.History.Ping(ctx))

		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("retention job is created when enabled", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.Retention = config.RetentionConfig{
			Enabled:          true,
			Interval:         time.Hour,
			MaxAge:           24 * time.Hour,
			BatchSize:        10,
			BatchesPerSecond: 100,
			StopTimeout:      time.Second,
		}

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NotNil(t, deps.Retention)

		require.NoError(t, deps.Retention.Start())
		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("postgres connection failure", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Database.Driver = config.DriverPostgres
		cfg.Database.ConnectionString = "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1"

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize database")
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Database.Driver = "mysql"

		_, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		assert.ErrorContains(t, err, "unsupported database driver")
	})
}

func TestDependenciesClose(t *testing.T) {
	ctx := context.Background()
	deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.NoError(t, deps.Close(ctx))
	assert.NoError(t, deps.Close(ctx))
}

// Test helpers

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: config.DatabaseConfig{
			Driver:     config.DriverSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "fact_history.db"),
		},
		History: config.HistoryConfig{
			EraseBatchSize:    50,
			DefaultPurgeLimit: 100,
		},
		Auth: config.AuthConfig{
			JWTSecret:      "test-secret",
			MaintainerRole: "maintainer",
		},
		Observability: config.ObservabilityConfig{
			LogLevel:  "debug",
			LogFormat: "json",
		},
	}
}
