package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/fact-history/middleware"
	"github.com/upb/fact-history/models"
	"github.com/upb/fact-history/services"
	"github.com/upb/fact-history/services/history"
	"github.com/upb/fact-history/utils"
	"go.uber.org/zap"
)

// FactHistoryService is the slice of history.Service the HTTP layer uses
type FactHistoryService interface {
	Append(ctx context.Context, in history.AppendInput) (*history.AppendResult, error)
	GetEvent(ctx context.Context, eventID string) (*models.FactEvent, error)
	GetHistory(ctx context.Context, factID string, limit int) ([]*models.FactEvent, error)
	GetSupersessionChain(ctx context.Context, factID string) ([]models.SupersessionLink, error)
	GetChangesByTimeRange(ctx context.Context, q history.ChangesQuery) ([]*models.FactEvent, error)
	CountByAction(ctx context.Context, memorySpaceID string, after, before *int64) (*models.ActionCounts, error)
	GetActivitySummary(ctx context.Context, memorySpaceID string, hours int) (*models.ActivitySummary, error)
	EraseByFact(ctx context.Context, factID string) (*history.EraseResult, error)
	EraseByUser(ctx context.Context, userID string) (*history.EraseResult, error)
	EraseByMemorySpace(ctx context.Context, memorySpaceID string) (*history.EraseResult, error)
	PurgeOlderThan(ctx context.Context, olderThan int64, memorySpaceID string, limit int) (*history.PurgeResult, error)
}

// PurgeRequest is the body of POST /purge. OlderThan is an epoch-millisecond cutoff.
type PurgeRequest struct {
	OlderThan     int64  `json:"older_than" validate:"required"`
	MemorySpaceID string `json:"memory_space_id,omitempty" validate:"omitempty,max=255"`
	Limit         int    `json:"limit,omitempty" validate:"gte=0"`
}

// FactHistoryHandler exposes the fact history service over HTTP
type FactHistoryHandler struct {
	service FactHistoryService
	logger  *zap.Logger
}

// NewFactHistoryHandler creates a new FactHistoryHandler
func NewFactHistoryHandler(service FactHistoryService, logger *zap.Logger) *FactHistoryHandler {
	return &FactHistoryHandler{
		service: service,
		logger:  logger,
	}
}

// HandleAppend handles POST /events
func (h *FactHistoryHandler) HandleAppend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input history.AppendInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(&input); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.Append(ctx, input)
	if err != nil {
		h.logServiceError("append fact event", r, err)
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, result)
}

// HandleGetEvent handles GET /events/{eventId}
func (h *FactHistoryHandler) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	event, err := h.service.GetEvent(r.Context(), eventID)
	if err != nil {
		h.logServiceError("get fact event", r, err)
		HandleServiceError(w, err, h.logger)
		return
	}
	if event == nil {
		HandleServiceError(w, services.ErrEventNotFound, h.logger)
		return
	}

	_ = utils.WriteOK(w, event)
}

// HandleGetHistory handles GET /facts/{factId}/history
func (h *FactHistoryHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := utils.QueryInt(r, "limit", 0)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	events, err := h.service.GetHistory(r.Context(), chi.URLParam(r, "factId"), limit)
	if err != nil {
		h.logServiceError("get fact history", r, err)
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, events)
}

// HandleGetChain handles GET /facts/{factId}/chain
func (h *FactHistoryHandler) HandleGetChain(w http.ResponseWriter, r *http.Request) {
	chain, err := h.service.GetSupersessionChain(r.Context(), chi.URLParam(r, "factId"))
	if err != nil {
		h.logServiceError("resolve supersession chain", r, err)
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, chain)
}

// HandleGetChanges handles GET /spaces/{spaceId}/changes
func (h *FactHistoryHandler) HandleGetChanges(w http.ResponseWriter, r *http.Request) {
	q := history.ChangesQuery{MemorySpaceID: chi.URLParam(r, "spaceId")}

	var err error
	if q.After, err = utils.QueryInt64(r, "after"); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if q.Before, err = utils.QueryInt64(r, "before"); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if q.Action, err = utils.QueryAction(r, "action"); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if q.Limit, err = utils.QueryInt(r, "limit", 0); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if q.Offset, err = utils.QueryInt(r, "offset", 0); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	events, err := h.service.GetChangesByTimeRange(r.Context(), q)
	if err != nil {
		h.logServiceError("get changes by time range", r, err)
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, events)
}

// HandleCountByAction handles GET /spaces/{spaceId}/counts
func (h *FactHistoryHandler) HandleCountByAction(w http.ResponseWriter, r *http.Request) {
	after, err := utils.QueryInt64(r, "after")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	before, err := utils.QueryInt64(r, "before")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	counts, err := h.service.CountByAction(r.Context(), chi.URLParam(r, "spaceId"), after, before)
	if err != nil {
		h.logServiceError("count by action", r, err)
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, counts)
}

// HandleGetActivity handles GET /spaces/{spaceId}/activity
func (h *FactHistoryHandler) HandleGetActivity(w http.ResponseWriter, r *http.Request) {
	hours, err := utils.QueryInt(r, "hours", 0)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	summary, err := h.service.GetActivitySummary(r.Context(), chi.URLParam(r, "spaceId"), hours)
	if err != nil {
		h.logServiceError("get activity summary", r, err)
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, summary)
}

// HandleEraseFact handles DELETE /facts/{factId}
func (h *FactHistoryHandler) HandleEraseFact(w http.ResponseWriter, r *http.Request) {
	h.erase(w, r, "fact_id", chi.URLParam(r, "factId"), h.service.EraseByFact)
}

// HandleEraseUser handles DELETE /users/{userId}
func (h *FactHistoryHandler) HandleEraseUser(w http.ResponseWriter, r *http.Request) {
	h.erase(w, r, "user_id", chi.URLParam(r, "userId"), h.service.EraseByUser)
}

// HandleEraseSpace handles DELETE /spaces/{spaceId}
func (h *FactHistoryHandler) HandleEraseSpace(w http.ResponseWriter, r *http.Request) {
	h.erase(w, r, "memory_space_id", chi.URLParam(r, "spaceId"), h.service.EraseByMemorySpace)
}

func (h *FactHistoryHandler) erase(
	w http.ResponseWriter,
	r *http.Request,
	field, key string,
	fn func(context.Context, string) (*history.EraseResult, error),
) {
	result, err := fn(r.Context(), key)
	if err != nil {
		h.logServiceError("erase fact history", r, err)
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("fact history erased via api",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("subject", subject(r)),
		zap.String(field, key),
		zap.Int("deleted_count", result.DeletedCount))

	_ = utils.WriteOK(w, result)
}

// HandlePurge handles POST /purge
func (h *FactHistoryHandler) HandlePurge(w http.ResponseWriter, r *http.Request) {
	var req PurgeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.PurgeOlderThan(r.Context(), req.OlderThan, req.MemorySpaceID, req.Limit)
	if err != nil {
		h.logServiceError("purge fact history", r, err)
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("fact history purged via api",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("subject", subject(r)),
		zap.Int64("older_than", req.OlderThan),
		zap.Int("deleted_count", result.DeletedCount),
		zap.Int("remaining_count", result.RemainingCount))

	_ = utils.WriteOK(w, result)
}

func (h *FactHistoryHandler) logServiceError(op string, r *http.Request, err error) {
	if services.IsValidationError(err) || services.IsNotFoundError(err) {
		return
	}
	h.logger.Error("failed to "+op,
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err))
}

func subject(r *http.Request) string {
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		return claims.Subject
	}
	return ""
}
