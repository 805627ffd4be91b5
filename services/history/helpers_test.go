package history

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/fact-history/models"
	"github.com/upb/fact-history/repositories"
	"github.com/upb/fact-history/repositories/sqlite"
	"go.uber.org/zap"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: baseTime}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newSQLiteService(t *testing.T, cfg Config) (*Service, repositories.FactEventRepository, *testClock) {
	t.Helper()
	store, err := sqlite.OpenInMemory(context.Background(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	repo := store.NewFactEventRepository()
	clock := newTestClock()
	return NewService(repo, zap.NewNop(), cfg, WithClock(clock.Now)), repo, clock
}

func mustAppend(t *testing.T, svc *Service, in AppendInput) *AppendResult {
	t.Helper()
	res, err := svc.Append(context.Background(), in)
	require.NoError(t, err)
	return res
}

func strPtr(s string) *string { return &s }

func actionPtr(a models.Action) *models.Action { return &a }

// MockRepository is a mock implementation of repositories.FactEventRepository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Insert(ctx context.Context, event *models.FactEvent) (int64, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) GetByEventID(ctx context.Context, eventID string) (*models.FactEvent, error) {
	args := m.Called(ctx, eventID)
	if event := args.Get(0); event != nil {
		return event.(*models.FactEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) Scan(ctx context.Context, q repositories.ScanQuery, fn func(*models.FactEvent) error) error {
	args := m.Called(ctx, q)
	if events := args.Get(0); events != nil {
		for _, e := range events.([]*models.FactEvent) {
			if err := fn(e); err != nil {
				if err == repositories.ErrStopScan {
					return nil
				}
				return err
			}
		}
	}
	return args.Error(1)
}

func (m *MockRepository) Count(ctx context.Context, q repositories.ScanQuery) (int, error) {
	args := m.Called(ctx, q)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, key int64) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func newMockService(cfg Config) (*Service, *MockRepository) {
	repo := new(MockRepository)
	return NewService(repo, zap.NewNop(), cfg, WithClock(newTestClock().Now)), repo
}
