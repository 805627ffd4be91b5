package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/fact-history/models"
	"github.com/upb/fact-history/repositories"
	"github.com/upb/fact-history/repositories/sqlite/migrations"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

func openTestStore(t *testing.T) (*Store, repositories.FactEventRepository) {
	t.Helper()
	store, err := OpenInMemory(context.Background(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, store.NewFactEventRepository()
}

func insertEvent(t *testing.T, repo repositories.FactEventRepository, eventID, factID, spaceID string, action models.Action, ts int64) int64 {
	t.Helper()
	event, err := models.NewFactEvent(factID, spaceID, action)
	require.NoError(t, err)
	event.EventID = eventID
	event.Timestamp = ts
	key, err := repo.Insert(context.Background(), event)
	require.NoError(t, err)
	return key
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ", zap.NewNop())
	assert.Error(t, err)
}

func TestStore_RoundTrip(t *testing.T) {
	_, repo := openTestStore(t)
	ctx := context.Background()

	confidence := 0.92
	event, err := models.NewFactEvent("fact-2", "space-1", models.ActionSupersede)
	require.NoError(t, err)
	event.EventID = "fh-roundtrip"
	event.Timestamp = 1700000000123
	event.WithValues(strPtr("likes tea"), strPtr("likes coffee")).
		WithSupersession(strPtr("fact-1"), nil).
		WithResolution(strPtr("preference changed"), &confidence,
			&models.PipelineTrace{SlotMatching: true, LLMResolution: true}).
		WithProvenance(strPtr("user-1"), strPtr("agent-7"), strPtr("conv-3"))

	key, err := repo.Insert(ctx, event)
	require.NoError(t, err)
	assert.Positive(t, key)

	got, err := repo.GetByEventID(ctx, "fh-roundtrip")
	require.NoError(t, err)

	event.Key = key
	assert.Equal(t, event, got)
}

func TestStore_GetByEventID_NotFound(t *testing.T) {
	_, repo := openTestStore(t)

	got, err := repo.GetByEventID(context.Background(), "fh-missing")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestStore_DuplicateEventIDRejected(t *testing.T) {
	_, repo := openTestStore(t)
	insertEvent(t, repo, "fh-dup", "fact-1", "space-1", models.ActionCreate, 1)

	event, err := models.NewFactEvent("fact-2", "space-1", models.ActionCreate)
	require.NoError(t, err)
	event.EventID = "fh-dup"
	_, err = repo.Insert(context.Background(), event)
	assert.Error(t, err)
}

func TestStore_ScanOrderingAndTies(t *testing.T) {
	_, repo := openTestStore(t)
	ctx := context.Background()

	k1 := insertEvent(t, repo, "fh-1", "fact-1", "space-1", models.ActionCreate, 100)
	k2 := insertEvent(t, repo, "fh-2", "fact-1", "space-1", models.ActionUpdate, 200)
	k3 := insertEvent(t, repo, "fh-3", "fact-1", "space-1", models.ActionUpdate, 200)
	insertEvent(t, repo, "fh-4", "fact-2", "space-1", models.ActionCreate, 150)

	desc, err := repositories.Collect(ctx, repo, repositories.ScanQuery{Index: repositories.IndexByFact, Key: "fact-1"})
	require.NoError(t, err)
	assert.Equal(t, []int64{k3, k2, k1}, keys(desc))

	asc, err := repositories.Collect(ctx, repo, repositories.ScanQuery{
		Index: repositories.IndexByFact, Key: "fact-1", Order: repositories.OrderAscending,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{k1, k2, k3}, keys(asc))

	limited, err := repositories.Collect(ctx, repo, repositories.ScanQuery{Index: repositories.IndexByFact, Key: "fact-1", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{k3, k2}, keys(limited))
}

func TestStore_RangeAndCount(t *testing.T) {
	_, repo := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		insertEvent(t, repo, fmt.Sprintf("fh-a%d", i), fmt.Sprintf("fact-%d", i), "space-a", models.ActionCreate, int64(i*10))
	}
	insertEvent(t, repo, "fh-b", "fact-b", "space-b", models.ActionCreate, 5)

	q := repositories.ScanQuery{
		Index: repositories.IndexBySpaceTime,
		Key:   "space-a",
		Range: repositories.Range{Lower: repositories.Int64(20), Upper: repositories.Int64(50)},
	}
	events, err := repositories.Collect(ctx, repo, q)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, int64(50), events[0].Timestamp)
	assert.Equal(t, int64(20), events[3].Timestamp)

	q.Range.UpperExclusive = true
	count, err := repo.Count(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	all, err := repo.Count(ctx, repositories.ScanQuery{
		Index: repositories.IndexByTime,
		Range: repositories.Range{Upper: repositories.Int64(10), UpperExclusive: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, all)
}

func TestStore_ScanByUser(t *testing.T) {
	_, repo := openTestStore(t)
	ctx := context.Background()

	event, err := models.NewFactEvent("fact-1", "space-1", models.ActionCreate)
	require.NoError(t, err)
	event.EventID = "fh-u"
	event.WithProvenance(strPtr("user-9"), nil, nil)
	_, err = repo.Insert(ctx, event)
	require.NoError(t, err)
	insertEvent(t, repo, "fh-other", "fact-2", "space-1", models.ActionCreate, 1)

	events, err := repositories.Collect(ctx, repo, repositories.ScanQuery{Index: repositories.IndexByUser, Key: "user-9"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "fh-u", events[0].EventID)
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	_, repo := openTestStore(t)
	ctx := context.Background()

	key := insertEvent(t, repo, "fh-1", "fact-1", "space-1", models.ActionCreate, 1)
	require.NoError(t, repo.Delete(ctx, key))
	require.NoError(t, repo.Delete(ctx, key))

	_, err := repo.GetByEventID(ctx, "fh-1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestStore_ReopenKeepsDataAndMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := Open(ctx, path, zap.NewNop())
	require.NoError(t, err)
	insertEvent(t, store.NewFactEventRepository(), "fh-1", "fact-1", "space-1", models.ActionCreate, 1)
	require.NoError(t, store.Close())

	store, err = Open(ctx, path, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	got, err := store.NewFactEventRepository().GetByEventID(ctx, "fh-1")
	require.NoError(t, err)
	assert.Equal(t, "fact-1", got.FactID)

	var applied int
	require.NoError(t, store.DB().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	store, _ := openTestStore(t)
	require.NoError(t, applyMigrations(context.Background(), store.DB(), migrations.FS))
}

func TestExtractUp(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a (id INT);\n", extractUp(content))
	assert.Equal(t, "SELECT 1;", extractUp("SELECT 1;"))
}

func TestStore_CloseNil(t *testing.T) {
	var s *Store
	assert.NoError(t, s.Close())
}

func keys(events []*models.FactEvent) []int64 {
	out := make([]int64, len(events))
	for i, e := range events {
		out[i] = e.Key
	}
	return out
}
