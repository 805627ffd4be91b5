package history

import (
	"context"
	"strings"

	"github.com/upb/fact-history/models"
	"github.com/upb/fact-history/services"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// AppendInput is what the resolution pipeline reports for one fact decision
type AppendInput struct {
	FactID         string                `json:"fact_id" validate:"required,max=255"`
	MemorySpaceID  string                `json:"memory_space_id" validate:"required,max=255"`
	Action         models.Action         `json:"action" validate:"fact_action"`
	OldValue       *string               `json:"old_value,omitempty"`
	NewValue       *string               `json:"new_value,omitempty"`
	Supersedes     *string               `json:"supersedes,omitempty" validate:"omitempty,max=255"`
	SupersededBy   *string               `json:"superseded_by,omitempty" validate:"omitempty,max=255"`
	Reason         *string               `json:"reason,omitempty"`
	Confidence     *float64              `json:"confidence,omitempty"`
	Pipeline       *models.PipelineTrace `json:"pipeline,omitempty"`
	UserID         *string               `json:"user_id,omitempty" validate:"omitempty,max=255"`
	ParticipantID  *string               `json:"participant_id,omitempty" validate:"omitempty,max=255"`
	ConversationID *string               `json:"conversation_id,omitempty" validate:"omitempty,max=255"`
}

// AppendResult identifies the stored event
type AppendResult struct {
	EventID    string `json:"event_id"`
	StorageKey int64  `json:"storage_key"`
}

// Append records one fact event. The event ID and timestamp are assigned here,
// never taken from the caller.
func (s *Service) Append(ctx context.Context, in AppendInput) (res *AppendResult, err error) {
	ctx, span := tracer.Start(ctx, "history.Append",
		trace.WithAttributes(
			attribute.String("fact_id", in.FactID),
			attribute.String("memory_space_id", in.MemorySpaceID),
			attribute.String("action", in.Action.String()),
		))
	defer func() { endSpan(span, err) }()

	event, err := buildEvent(in)
	if err != nil {
		return nil, err
	}

	event.EventID, err = s.ids.NewEventID()
	if err != nil {
		return nil, services.WrapInternal("failed to generate event id", err)
	}
	event.Timestamp = s.nowMillis()

	key, err := s.repo.Insert(ctx, event)
	if err != nil {
		s.logger.Error("failed to append fact event",
			zap.String("fact_id", event.FactID),
			zap.String("memory_space_id", event.MemorySpaceID),
			zap.Error(err))
		return nil, services.WrapStorageWrite("failed to append fact event", err)
	}

	span.SetAttributes(attribute.String("event_id", event.EventID), attribute.Int64("storage_key", key))
	s.logger.Debug("fact event appended",
		zap.String("event_id", event.EventID),
		zap.Int64("storage_key", key),
		zap.String("fact_id", event.FactID),
		zap.String("action", event.Action.String()))

	return &AppendResult{EventID: event.EventID, StorageKey: key}, nil
}

func buildEvent(in AppendInput) (*models.FactEvent, error) {
	if strings.TrimSpace(in.FactID) == "" {
		return nil, services.Validationf("fact_id is required")
	}
	if strings.TrimSpace(in.MemorySpaceID) == "" {
		return nil, services.Validationf("memory_space_id is required")
	}

	event, err := models.NewFactEvent(in.FactID, in.MemorySpaceID, in.Action)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid fact action", err)
	}

	if in.Action == models.ActionSupersede && in.Supersedes != nil && *in.Supersedes == in.FactID {
		return nil, services.NewDomainError(services.ErrorTypeValidation, services.ErrSelfSupersession.Message, nil).
			WithDetail("fact_id", in.FactID)
	}

	event.WithValues(in.OldValue, in.NewValue).
		WithSupersession(in.Supersedes, in.SupersededBy).
		WithResolution(in.Reason, in.Confidence, in.Pipeline).
		WithProvenance(in.UserID, in.ParticipantID, in.ConversationID)
	return event, nil
}
