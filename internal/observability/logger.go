package observability

import (
	"context"
	"fmt"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/fact-history/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field represents a structured log field.
type Field = zap.Field

// NewLogger builds the process logger. LogFormat "json" gives the production
// encoder; anything else gives the development console encoder.
func NewLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zapCfg zap.Config
	if cfg.LogFormat == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if cfg.ServiceName != "" {
		logger = logger.With(zap.String("service", cfg.ServiceName))
	}
	return logger, nil
}

// WithRequestID returns logger annotated with the request ID chi stored in ctx, if any.
func WithRequestID(ctx context.Context, logger *zap.Logger, fields ...Field) *zap.Logger {
	if reqID := chimw.GetReqID(ctx); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
