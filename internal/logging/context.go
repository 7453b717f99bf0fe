package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// FromContext extracts the logger from context
// If no logger is found, returns a disabled logger (no-op)
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// WithComponent creates a child logger with a component field
func WithComponent(ctx context.Context, component string) context.Context {
	logger := FromContext(ctx)
	childLogger := logger.With().Str("component", component).Logger()
	return WithContext(ctx, childLogger)
}

// WithViewportID creates a child logger with a viewport_id field
func WithViewportID(ctx context.Context, viewportID string) context.Context {
	logger := FromContext(ctx)
	childLogger := logger.With().Str("viewport_id", viewportID).Logger()
	return WithContext(ctx, childLogger)
}

// WithSyncGroup creates a child logger with a sync_group field
func WithSyncGroup(ctx context.Context, groupID string) context.Context {
	logger := FromContext(ctx)
	childLogger := logger.With().Str("sync_group", groupID).Logger()
	return WithContext(ctx, childLogger)
}
