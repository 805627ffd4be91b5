package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/fact-history/middleware"
	"github.com/upb/fact-history/models"
	"github.com/upb/fact-history/repositories/sqlite"
	"go.uber.org/zap"
)

// setupEnv points the CLI at a fresh SQLite file and returns its path
func setupEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.db")
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", path)
	t.Setenv("AUTH_JWT_SECRET", "cli-secret")
	t.Setenv("TRACING_ENDPOINT", "")
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// seed inserts events directly with explicit timestamps
func seed(t *testing.T, path string, events ...*models.FactEvent) {
	t.Helper()
	store, err := sqlite.Open(context.Background(), path, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	repo := store.NewFactEventRepository()
	for _, e := range events {
		_, err := repo.Insert(context.Background(), e)
		require.NoError(t, err)
	}
}

func event(t *testing.T, n int, factID, spaceID string, userID *string, ts time.Time) *models.FactEvent {
	t.Helper()
	e, err := models.NewFactEvent(factID, spaceID, models.ActionUpdate)
	require.NoError(t, err)
	e.EventID = fmt.Sprintf("fh-cli-%d", n)
	e.Timestamp = ts.UnixMilli()
	e.UserID = userID
	return e
}

func TestMigrateCommand(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)

	var status map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, "sqlite", status["driver"])

	_, err = run(t, "migrate")
	assert.NoError(t, err)
}

func TestPurgeCommand(t *testing.T) {
	path := setupEnv(t)
	old := time.Now().Add(-48 * time.Hour)
	var events []*models.FactEvent
	for i := 0; i < 5; i++ {
		events = append(events, event(t, i, "fact-1", "space-1", nil, old.Add(time.Duration(i)*time.Minute)))
	}
	events = append(events, event(t, 99, "fact-1", "space-1", nil, time.Now()))
	seed(t, path, events...)

	out, err := run(t, "purge", "--older-than", "24h", "--limit", "2")
	require.NoError(t, err)

	var report purgeReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Batches)
	assert.Equal(t, 2, report.DeletedCount)
	assert.Equal(t, 3, report.RemainingCount)

	out, err = run(t, "purge", "--older-than", "24h", "--limit", "2", "--drain")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Batches)
	assert.Equal(t, 3, report.DeletedCount)
	assert.Equal(t, 0, report.RemainingCount)
}

func TestPurgeCommand_Validation(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "purge")
	assert.Error(t, err)

	_, err = run(t, "purge", "--older-than=-1h")
	assert.ErrorContains(t, err, "--older-than must be positive")
}

func TestEraseCommand(t *testing.T) {
	path := setupEnv(t)
	user := "user-1"
	now := time.Now()
	seed(t, path,
		event(t, 1, "fact-1", "space-1", &user, now),
		event(t, 2, "fact-1", "space-1", nil, now),
		event(t, 3, "fact-2", "space-2", &user, now),
		event(t, 4, "fact-3", "space-2", nil, now),
	)

	tests := []struct {
		args []string
		want int
	}{
		{[]string{"erase", "--fact", "fact-1"}, 2},
		{[]string{"erase", "--fact", "fact-1"}, 0},
		{[]string{"erase", "--user", "user-1"}, 1},
		{[]string{"erase", "--space", "space-2"}, 1},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := run(t, tt.args...)
			require.NoError(t, err)

			var res struct {
				DeletedCount int `json:"deleted_count"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &res))
			assert.Equal(t, tt.want, res.DeletedCount)
		})
	}
}

func TestEraseCommand_Selectors(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "erase")
	assert.ErrorContains(t, err, "one of --fact, --user or --space is required")

	_, err = run(t, "erase", "--fact", "a", "--user", "b")
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "token", "--subject", "ops-7", "--ttl", "10m")
	require.NoError(t, err)

	claims, err := middleware.NewJWTValidator("cli-secret", "").ValidateToken(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops-7", claims.Subject)
	assert.True(t, claims.HasRole("maintainer"))
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("DB_DRIVER", "mysql")

	_, err := run(t, "migrate")
	assert.ErrorContains(t, err, "failed to load configuration")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	setupEnv(t)
	t.Setenv("SERVER_HOST", "127.0.0.1")
	t.Setenv("SERVER_PORT", "0")

	rt := &runtime{}
	require.NoError(t, rt.load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, rt) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}
