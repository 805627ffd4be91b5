package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/upb/fact-history/models"
	"github.com/upb/fact-history/repositories/sqlite"
	"go.uber.org/zap"
)

func propertyParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	parameters.MaxSize = 40
	return parameters
}

// withFreshService runs fn against an empty in-memory store
func withFreshService(fn func(svc *Service, clock *testClock) bool) bool {
	store, err := sqlite.OpenInMemory(context.Background(), zap.NewNop())
	if err != nil {
		return false
	}
	defer store.Close()

	clock := newTestClock()
	svc := NewService(store.NewFactEventRepository(), zap.NewNop(), DefaultConfig(), WithClock(clock.Now))
	return fn(svc, clock)
}

// TestHistoryOrderingProperty verifies history is newest first with ties in reverse insertion order.
// Property: for any sequence of non-negative clock steps, GetHistory is sorted by (timestamp, key) descending
func TestHistoryOrderingProperty(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("history is most recent first", prop.ForAll(
		func(steps []int) bool {
			return withFreshService(func(svc *Service, clock *testClock) bool {
				ctx := context.Background()
				for _, step := range steps {
					clock.Advance(time.Duration(step) * time.Millisecond)
					if _, err := svc.Append(ctx, AppendInput{FactID: "F", MemorySpaceID: "S", Action: models.ActionUpdate}); err != nil {
						return false
					}
				}

				events, err := svc.GetHistory(ctx, "F", len(steps)+1)
				if err != nil || len(events) != len(steps) {
					return false
				}
				for i := 1; i < len(events); i++ {
					prev, cur := events[i-1], events[i]
					if cur.Timestamp > prev.Timestamp {
						return false
					}
					if cur.Timestamp == prev.Timestamp && cur.Key > prev.Key {
						return false
					}
				}
				return true
			})
		},
		gen.SliceOf(gen.IntRange(0, 3)),
	))

	properties.TestingRun(t)
}

// TestCountConsistencyProperty verifies CountByAction agrees with GetChangesByTimeRange.
// Property: total == sum of per-action counts == len(changes) for the same window
func TestCountConsistencyProperty(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("counts match unbounded changes", prop.ForAll(
		func(actions []int, lo, width int) bool {
			return withFreshService(func(svc *Service, clock *testClock) bool {
				ctx := context.Background()
				for i, a := range actions {
					clock.Set(baseTime.Add(time.Duration(i) * time.Second))
					if _, err := svc.Append(ctx, AppendInput{
						FactID:        fmt.Sprintf("F%d", i%7),
						MemorySpaceID: "S",
						Action:        models.Actions[a],
					}); err != nil {
						return false
					}
				}

				after := baseTime.Add(time.Duration(lo) * time.Second).UnixMilli()
				before := after + int64(width)*1000
				counts, err := svc.CountByAction(ctx, "S", &after, &before)
				if err != nil {
					return false
				}
				events, err := svc.GetChangesByTimeRange(ctx, ChangesQuery{
					MemorySpaceID: "S", After: &after, Before: &before, Limit: len(actions) + 1,
				})
				if err != nil {
					return false
				}

				sum := counts.Create + counts.Update + counts.Supersede + counts.Delete
				return counts.Total == sum && counts.Total == len(events)
			})
		},
		gen.SliceOf(gen.IntRange(0, 3)),
		gen.IntRange(0, 40),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}

// TestPurgeBoundProperty verifies purges are bounded and converge.
// Property: each call deletes at most limit and remaining strictly decreases to zero
func TestPurgeBoundProperty(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("purge is bounded and resumable", prop.ForAll(
		func(n, limit int) bool {
			return withFreshService(func(svc *Service, clock *testClock) bool {
				ctx := context.Background()
				for i := 0; i < n; i++ {
					clock.Advance(time.Second)
					if _, err := svc.Append(ctx, AppendInput{FactID: "F", MemorySpaceID: "S", Action: models.ActionCreate}); err != nil {
						return false
					}
				}
				cutoff := clock.Now().Add(time.Second).UnixMilli()

				previous := n
				for {
					res, err := svc.PurgeOlderThan(ctx, cutoff, "", limit)
					if err != nil || res.DeletedCount > limit {
						return false
					}
					if res.RemainingCount != previous-res.DeletedCount {
						return false
					}
					if res.RemainingCount == 0 {
						return true
					}
					if res.RemainingCount >= previous {
						return false
					}
					previous = res.RemainingCount
				}
			})
		},
		gen.IntRange(0, 40),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}
