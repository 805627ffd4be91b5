// Package history implements the fact history core: the event log writer,
// cascading eraser, retention purger, query engine and supersession lineage
// resolver. Every operation goes through repositories.FactEventRepository.
package history

import (
	"context"
	"time"

	"github.com/upb/fact-history/repositories"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/upb/fact-history/services/history")

const (
	DefaultHistoryLimit = 100
	DefaultChangesLimit = 100
	DefaultPurgeLimit   = 1000
	DefaultSummaryHours = 24
	DefaultEraseBatch   = 500
)

// Config holds tunables for the Service
type Config struct {
	EraseBatchSize    int // events deleted per erase round trip
	DefaultPurgeLimit int // used when a purge request leaves limit unset
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		EraseBatchSize:    DefaultEraseBatch,
		DefaultPurgeLimit: DefaultPurgeLimit,
	}
}

// Service is stateless between calls; all state lives in the repository.
type Service struct {
	repo              repositories.FactEventRepository
	logger            *zap.Logger
	ids               IDGenerator
	now               func() time.Time
	eraseBatchSize    int
	defaultPurgeLimit int
}

// Option customises a Service
type Option func(*Service)

// WithClock overrides the wall clock used for event timestamps and summary windows
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides the event ID generator
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Service) { s.ids = ids }
}

// NewService creates a new fact history service
func NewService(repo repositories.FactEventRepository, logger *zap.Logger, cfg Config, opts ...Option) *Service {
	if cfg.EraseBatchSize <= 0 {
		cfg.EraseBatchSize = DefaultEraseBatch
	}
	if cfg.DefaultPurgeLimit <= 0 {
		cfg.DefaultPurgeLimit = DefaultPurgeLimit
	}

	s := &Service{
		repo:              repo,
		logger:            logger,
		ids:               UUIDv7Generator{},
		now:               time.Now,
		eraseBatchSize:    cfg.EraseBatchSize,
		defaultPurgeLimit: cfg.DefaultPurgeLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks that the backing store is reachable
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) nowMillis() int64 {
	return s.now().UnixMilli()
}

// endSpan records err on the span, if any, and ends it
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
