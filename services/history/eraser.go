package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/upb/fact-history/repositories"
	"github.com/upb/fact-history/services"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// EraseResult reports how many events a cascading erasure removed
type EraseResult struct {
	DeletedCount int `json:"deleted_count"`
}

// EraseByFact removes every event recorded for a fact
func (s *Service) EraseByFact(ctx context.Context, factID string) (*EraseResult, error) {
	return s.erase(ctx, "history.EraseByFact", repositories.IndexByFact, "fact_id", factID)
}

// EraseByUser removes every event attributed to a user
func (s *Service) EraseByUser(ctx context.Context, userID string) (*EraseResult, error) {
	return s.erase(ctx, "history.EraseByUser", repositories.IndexByUser, "user_id", userID)
}

// EraseByMemorySpace removes every event in a memory space
func (s *Service) EraseByMemorySpace(ctx context.Context, memorySpaceID string) (*EraseResult, error) {
	return s.erase(ctx, "history.EraseByMemorySpace", repositories.IndexBySpace, "memory_space_id", memorySpaceID)
}

// erase deletes matches in bounded batches until a scan comes back empty.
// Partial progress survives a failure; re-running resumes where it stopped.
func (s *Service) erase(ctx context.Context, op string, index repositories.Index, field, key string) (res *EraseResult, err error) {
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String(field, key)))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(key) == "" {
		return nil, services.Validationf("%s is required", field)
	}

	q := repositories.ScanQuery{
		Index: index,
		Key:   key,
		Order: repositories.OrderAscending,
		Limit: s.eraseBatchSize,
	}

	deleted := 0
	var previous map[int64]struct{}
	for {
		batch, err := repositories.Collect(ctx, s.repo, q)
		if err != nil {
			return nil, services.WrapStorageRead("failed to scan events for erasure", err)
		}
		if len(batch) == 0 {
			break
		}

		current := make(map[int64]struct{}, len(batch))
		for _, event := range batch {
			if _, seen := previous[event.Key]; seen {
				return nil, services.WrapStorageWrite("erasure made no progress",
					fmt.Errorf("storage key %d still present after delete", event.Key))
			}
			if err := s.repo.Delete(ctx, event.Key); err != nil {
				s.logger.Error("erasure interrupted",
					zap.String("index", index.String()),
					zap.String(field, key),
					zap.Int("deleted_count", deleted),
					zap.Error(err))
				return nil, services.WrapStorageWrite("failed to delete event", err)
			}
			current[event.Key] = struct{}{}
			deleted++
		}
		previous = current
	}

	span.SetAttributes(attribute.Int("deleted_count", deleted))
	s.logger.Info("fact history erased",
		zap.String("index", index.String()),
		zap.String(field, key),
		zap.Int("deleted_count", deleted))

	return &EraseResult{DeletedCount: deleted}, nil
}
