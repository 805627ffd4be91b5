package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/upb/fact-history/models"
	"github.com/upb/fact-history/repositories"
	"github.com/upb/fact-history/services"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const currentVersionReason = "current version"

// GetSupersessionChain walks SUPERSEDE events backwards from factID and returns
// the lineage oldest first, ending with factID itself as the current version.
// A fact reached twice, or a SUPERSEDE naming an empty fact, is InvalidLineage.
func (s *Service) GetSupersessionChain(ctx context.Context, factID string) (chain []models.SupersessionLink, err error) {
	ctx, span := tracer.Start(ctx, "history.GetSupersessionChain", trace.WithAttributes(attribute.String("fact_id", factID)))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(factID) == "" {
		return nil, services.Validationf("fact_id is required")
	}

	visited := map[string]struct{}{factID: {}}
	var backwards []models.SupersessionLink

	current := factID
	for {
		event, err := s.latestSupersede(ctx, current)
		if err != nil {
			return nil, services.WrapStorageRead("failed to resolve supersession chain", err)
		}
		if event == nil || event.Supersedes == nil {
			break
		}

		target := *event.Supersedes
		if strings.TrimSpace(target) == "" {
			return nil, invalidLineage(factID, current, "supersede event names no predecessor")
		}
		if _, seen := visited[target]; seen {
			return nil, invalidLineage(factID, current, fmt.Sprintf("cycle through %s", target))
		}
		visited[target] = struct{}{}

		supersededBy := current
		backwards = append(backwards, models.SupersessionLink{
			FactID:       target,
			SupersededBy: &supersededBy,
			Timestamp:    event.Timestamp,
			Reason:       event.Reason,
		})
		current = target
	}

	chain = make([]models.SupersessionLink, 0, len(backwards)+1)
	for i := len(backwards) - 1; i >= 0; i-- {
		chain = append(chain, backwards[i])
	}
	reason := currentVersionReason
	chain = append(chain, models.SupersessionLink{
		FactID:    factID,
		Timestamp: s.nowMillis(),
		Reason:    &reason,
		Current:   true,
	})

	span.SetAttributes(attribute.Int("chain_length", len(chain)))
	return chain, nil
}

// latestSupersede returns the most recent SUPERSEDE event recorded for factID, or nil
func (s *Service) latestSupersede(ctx context.Context, factID string) (*models.FactEvent, error) {
	var found *models.FactEvent
	err := s.repo.Scan(ctx, repositories.ScanQuery{
		Index: repositories.IndexByFact,
		Key:   factID,
		Order: repositories.OrderDescending,
	}, func(e *models.FactEvent) error {
		if e.Action != models.ActionSupersede {
			return nil
		}
		found = e
		return repositories.ErrStopScan
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func invalidLineage(factID, at, msg string) error {
	return services.NewDomainError(services.ErrorTypeInvalidLineage, services.ErrInvalidLineage.Message, errors.New(msg)).
		WithDetail("fact_id", factID).
		WithDetail("at_fact_id", at)
}
