package history

import (
	"context"

	"github.com/upb/fact-history/repositories"
	"github.com/upb/fact-history/services"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// PurgeResult reports one bounded purge batch
type PurgeResult struct {
	DeletedCount   int `json:"deleted_count"`
	RemainingCount int `json:"remaining_count"`
}

// PurgeOlderThan deletes at most limit events with timestamp < olderThan,
// oldest first, optionally scoped to a memory space. A zero limit uses the
// configured default. Callers loop until RemainingCount reaches zero.
func (s *Service) PurgeOlderThan(ctx context.Context, olderThan int64, memorySpaceID string, limit int) (res *PurgeResult, err error) {
	ctx, span := tracer.Start(ctx, "history.PurgeOlderThan",
		trace.WithAttributes(
			attribute.Int64("older_than", olderThan),
			attribute.String("memory_space_id", memorySpaceID),
			attribute.Int("limit", limit),
		))
	defer func() { endSpan(span, err) }()

	if limit < 0 {
		return nil, services.Validationf("limit must not be negative, got %d", limit)
	}
	if limit == 0 {
		limit = s.defaultPurgeLimit
	}

	q := repositories.ScanQuery{
		Index: repositories.IndexByTime,
		Range: repositories.Range{Upper: repositories.Int64(olderThan), UpperExclusive: true},
		Order: repositories.OrderAscending,
		Limit: limit,
	}
	if memorySpaceID != "" {
		q.Index = repositories.IndexBySpaceTime
		q.Key = memorySpaceID
	}

	batch, err := repositories.Collect(ctx, s.repo, q)
	if err != nil {
		return nil, services.WrapStorageRead("failed to scan events for purge", err)
	}

	deleted := 0
	for _, event := range batch {
		if err := s.repo.Delete(ctx, event.Key); err != nil {
			return nil, services.WrapStorageWrite("failed to delete event", err)
		}
		deleted++
	}

	remaining, err := s.repo.Count(ctx, q)
	if err != nil {
		return nil, services.WrapStorageRead("failed to count remaining events", err)
	}

	span.SetAttributes(attribute.Int("deleted_count", deleted), attribute.Int("remaining_count", remaining))
	s.logger.Info("fact history purged",
		zap.Int64("older_than", olderThan),
		zap.String("memory_space_id", memorySpaceID),
		zap.Int("deleted_count", deleted),
		zap.Int("remaining_count", remaining))

	return &PurgeResult{DeletedCount: deleted, RemainingCount: remaining}, nil
}
