package infrastructure

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tickoutlier/pkg/contracts/domain"
)

// GenerateTraceID creates a new unique trace ID using UUID v4
func GenerateTraceID() string {
	return uuid.New().String()
}

// NewRun captures the identity of a run. It must be called exactly once per
// process; the returned value is shared by every component.
func NewRun(now time.Time) domain.Run {
	return domain.Run{
		ID:        GenerateTraceID(),
		StartedAt: now,
	}
}

// WithComponent creates a logger with a component field
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithError creates a logger with an error field
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With("error", err.Error())
}
