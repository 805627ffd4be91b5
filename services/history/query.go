package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/upb/fact-history/models"
	"github.com/upb/fact-history/repositories"
	"github.com/upb/fact-history/services"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ChangesQuery selects events of one memory space. After and Before are
// inclusive epoch-millisecond bounds; Action narrows to one action.
type ChangesQuery struct {
	MemorySpaceID string
	After         *int64
	Before        *int64
	Action        *models.Action
	Limit         int // 0 uses DefaultChangesLimit
	Offset        int
}

// GetHistory returns up to limit events for a fact, most recent first.
// A zero limit uses DefaultHistoryLimit.
func (s *Service) GetHistory(ctx context.Context, factID string, limit int) (events []*models.FactEvent, err error) {
	ctx, span := tracer.Start(ctx, "history.GetHistory", trace.WithAttributes(attribute.String("fact_id", factID)))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(factID) == "" {
		return nil, services.Validationf("fact_id is required")
	}
	limit, err = resolveLimit(limit, DefaultHistoryLimit)
	if err != nil {
		return nil, err
	}

	events, err = repositories.Collect(ctx, s.repo, repositories.ScanQuery{
		Index: repositories.IndexByFact,
		Key:   factID,
		Order: repositories.OrderDescending,
		Limit: limit,
	})
	if err != nil {
		return nil, services.WrapStorageRead("failed to read fact history", err)
	}
	return nonNil(events), nil
}

// GetEvent looks an event up by its event ID. An unknown ID yields (nil, nil).
func (s *Service) GetEvent(ctx context.Context, eventID string) (event *models.FactEvent, err error) {
	ctx, span := tracer.Start(ctx, "history.GetEvent", trace.WithAttributes(attribute.String("event_id", eventID)))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(eventID) == "" {
		return nil, services.Validationf("event_id is required")
	}

	event, err = s.repo.GetByEventID(ctx, eventID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, services.WrapStorageRead("failed to read event", err)
	}
	return event, nil
}

// GetChangesByTimeRange returns a page of a memory space's events, newest first.
// The time bounds narrow the index range; the action filter and pagination
// apply to what the scan yields, so offset/limit count filtered events only.
func (s *Service) GetChangesByTimeRange(ctx context.Context, q ChangesQuery) (events []*models.FactEvent, err error) {
	ctx, span := tracer.Start(ctx, "history.GetChangesByTimeRange",
		trace.WithAttributes(attribute.String("memory_space_id", q.MemorySpaceID)))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(q.MemorySpaceID) == "" {
		return nil, services.Validationf("memory_space_id is required")
	}
	if q.Offset < 0 {
		return nil, services.Validationf("offset must not be negative, got %d", q.Offset)
	}
	limit, err := resolveLimit(q.Limit, DefaultChangesLimit)
	if err != nil {
		return nil, err
	}
	if q.Action != nil && !q.Action.Valid() {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid fact action", models.ErrInvalidAction)
	}

	events = make([]*models.FactEvent, 0)
	skipped := 0
	err = s.repo.Scan(ctx, spaceRangeQuery(q.MemorySpaceID, q.After, q.Before), func(e *models.FactEvent) error {
		if q.Action != nil && e.Action != *q.Action {
			return nil
		}
		if skipped < q.Offset {
			skipped++
			return nil
		}
		events = append(events, e)
		if len(events) >= limit {
			return repositories.ErrStopScan
		}
		return nil
	})
	if err != nil {
		return nil, services.WrapStorageRead("failed to read changes", err)
	}

	span.SetAttributes(attribute.Int("result_count", len(events)))
	return events, nil
}

// CountByAction counts a memory space's events per action within the optional bounds
func (s *Service) CountByAction(ctx context.Context, memorySpaceID string, after, before *int64) (counts *models.ActionCounts, err error) {
	ctx, span := tracer.Start(ctx, "history.CountByAction",
		trace.WithAttributes(attribute.String("memory_space_id", memorySpaceID)))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(memorySpaceID) == "" {
		return nil, services.Validationf("memory_space_id is required")
	}

	counts = &models.ActionCounts{}
	err = s.repo.Scan(ctx, spaceRangeQuery(memorySpaceID, after, before), func(e *models.FactEvent) error {
		counts.Add(e.Action)
		return nil
	})
	if err != nil {
		return nil, services.WrapStorageRead("failed to count events", err)
	}
	return counts, nil
}

// GetActivitySummary summarises a memory space over the last hours hours.
// A zero value uses DefaultSummaryHours.
func (s *Service) GetActivitySummary(ctx context.Context, memorySpaceID string, hours int) (summary *models.ActivitySummary, err error) {
	ctx, span := tracer.Start(ctx, "history.GetActivitySummary",
		trace.WithAttributes(attribute.String("memory_space_id", memorySpaceID), attribute.Int("hours", hours)))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(memorySpaceID) == "" {
		return nil, services.Validationf("memory_space_id is required")
	}
	if hours < 0 {
		return nil, services.Validationf("hours must be positive, got %d", hours)
	}
	if hours == 0 {
		hours = DefaultSummaryHours
	}

	end := s.nowMillis()
	start := end - int64(hours)*int64(time.Hour/time.Millisecond)

	summary = &models.ActivitySummary{
		MemorySpaceID:      memorySpaceID,
		Timeframe:          fmt.Sprintf("last %d hours", hours),
		WindowStart:        start,
		WindowEnd:          end,
		WindowStartRFC3339: time.UnixMilli(start).UTC().Format(time.RFC3339),
		WindowEndRFC3339:   time.UnixMilli(end).UTC().Format(time.RFC3339),
	}

	facts := make(map[string]struct{})
	actors := make(map[string]struct{})
	err = s.repo.Scan(ctx, repositories.ScanQuery{
		Index: repositories.IndexBySpaceTime,
		Key:   memorySpaceID,
		Range: repositories.Range{Lower: repositories.Int64(start)},
	}, func(e *models.FactEvent) error {
		summary.ActionCounts.Add(e.Action)
		facts[e.FactID] = struct{}{}
		for _, actor := range e.Actors() {
			actors[actor] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, services.WrapStorageRead("failed to summarise activity", err)
	}

	summary.TotalEvents = summary.ActionCounts.Total
	summary.UniqueFactsModified = len(facts)
	summary.ActiveParticipants = len(actors)
	return summary, nil
}

func spaceRangeQuery(memorySpaceID string, after, before *int64) repositories.ScanQuery {
	return repositories.ScanQuery{
		Index: repositories.IndexBySpaceTime,
		Key:   memorySpaceID,
		Range: repositories.Range{Lower: after, Upper: before},
		Order: repositories.OrderDescending,
	}
}

func resolveLimit(limit, def int) (int, error) {
	if limit < 0 {
		return 0, services.Validationf("limit must be positive, got %d", limit)
	}
	if limit == 0 {
		return def, nil
	}
	return limit, nil
}

func nonNil(events []*models.FactEvent) []*models.FactEvent {
	if events == nil {
		return []*models.FactEvent{}
	}
	return events
}
