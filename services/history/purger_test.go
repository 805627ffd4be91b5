package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/fact-history/models"
	"github.com/upb/fact-history/repositories"
	"github.com/upb/fact-history/services"
)

func TestService_PurgeOlderThan_BoundedBatches(t *testing.T) {
	svc, repo, clock := newSQLiteService(t, DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		clock.Advance(time.Minute)
		mustAppend(t, svc, AppendInput{FactID: "fact-1", MemorySpaceID: "space-1", Action: models.ActionUpdate})
	}
	cutoff := clock.Now().UnixMilli()
	clock.Advance(time.Minute)
	mustAppend(t, svc, AppendInput{FactID: "fact-1", MemorySpaceID: "space-1", Action: models.ActionUpdate})

	var remaining []int
	for {
		res, err := svc.PurgeOlderThan(ctx, cutoff, "", 4)
		require.NoError(t, err)
		assert.LessOrEqual(t, res.DeletedCount, 4)
		remaining = append(remaining, res.RemainingCount)
		if res.RemainingCount == 0 {
			break
		}
	}
	// nine events precede the cutoff; the tenth sits exactly on it and is kept
	assert.Equal(t, []int{5, 1, 0}, remaining)

	left, err := repositories.Collect(ctx, repo, repositories.ScanQuery{Index: repositories.IndexByTime})
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, cutoff, left[1].Timestamp)
}

func TestService_PurgeOlderThan_OldestFirst(t *testing.T) {
	svc, repo, clock := newSQLiteService(t, DefaultConfig())
	ctx := context.Background()

	var first int64
	for i := 0; i < 5; i++ {
		clock.Advance(time.Hour)
		res := mustAppend(t, svc, AppendInput{FactID: "fact-1", MemorySpaceID: "space-1", Action: models.ActionUpdate})
		if i == 0 {
			first = res.StorageKey
		}
	}

	res, err := svc.PurgeOlderThan(ctx, clock.Now().Add(time.Hour).UnixMilli(), "", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeletedCount)
	assert.Equal(t, 4, res.RemainingCount)

	left, err := repositories.Collect(ctx, repo, repositories.ScanQuery{Index: repositories.IndexByTime, Order: repositories.OrderAscending})
	require.NoError(t, err)
	for _, e := range left {
		assert.NotEqual(t, first, e.Key)
	}
}

func TestService_PurgeOlderThan_ScopedToSpace(t *testing.T) {
	svc, repo, clock := newSQLiteService(t, DefaultConfig())
	ctx := context.Background()

	for _, space := range []string{"space-1", "space-2", "space-1"} {
		clock.Advance(time.Second)
		mustAppend(t, svc, AppendInput{FactID: "fact-x", MemorySpaceID: space, Action: models.ActionCreate})
	}

	res, err := svc.PurgeOlderThan(ctx, clock.Now().Add(time.Second).UnixMilli(), "space-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.DeletedCount)
	assert.Zero(t, res.RemainingCount)

	total, err := repo.Count(ctx, repositories.ScanQuery{Index: repositories.IndexByTime})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestService_PurgeOlderThan_DefaultLimit(t *testing.T) {
	svc, repo := newMockService(Config{DefaultPurgeLimit: 25})

	repo.On("Scan", mock.Anything, mock.MatchedBy(func(q repositories.ScanQuery) bool {
		return q.Index == repositories.IndexByTime && q.Limit == 25 &&
			q.Order == repositories.OrderAscending &&
			q.Range.UpperExclusive && *q.Range.Upper == 1000
	})).Return([]*models.FactEvent{}, nil)
	repo.On("Count", mock.Anything, mock.Anything).Return(0, nil)

	res, err := svc.PurgeOlderThan(context.Background(), 1000, "", 0)
	require.NoError(t, err)
	assert.Equal(t, &PurgeResult{}, res)
	repo.AssertExpectations(t)
}

func TestService_PurgeOlderThan_Errors(t *testing.T) {
	t.Run("negative limit", func(t *testing.T) {
		svc, _ := newMockService(DefaultConfig())
		_, err := svc.PurgeOlderThan(context.Background(), 1, "", -1)
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("delete failure", func(t *testing.T) {
		svc, repo := newMockService(DefaultConfig())
		cause := errors.New("read-only file system")
		repo.On("Scan", mock.Anything, mock.Anything).Return([]*models.FactEvent{{Key: 1}}, nil)
		repo.On("Delete", mock.Anything, int64(1)).Return(cause)

		_, err := svc.PurgeOlderThan(context.Background(), 1, "", 10)
		assert.True(t, services.IsStorageError(err))
		assert.ErrorIs(t, err, cause)
		repo.AssertNotCalled(t, "Count", mock.Anything, mock.Anything)
	})

	t.Run("count failure", func(t *testing.T) {
		svc, repo := newMockService(DefaultConfig())
		cause := errors.New("timeout")
		repo.On("Scan", mock.Anything, mock.Anything).Return(nil, nil)
		repo.On("Count", mock.Anything, mock.Anything).Return(0, cause)

		_, err := svc.PurgeOlderThan(context.Background(), 1, "space-1", 10)
		assert.ErrorIs(t, err, cause)
	})
}
