// Package events publishes booking lifecycle events for subscribers outside
// the booking core.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	JobCreated   Type = "job.created"
	JobCanceled  Type = "job.canceled"
	SessionEnded Type = "session.ended"
)

// Event is the envelope put on the bus.
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	JobID      int64          `json:"job_id"`
	UserID     int64          `json:"user_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// New stamps an event with a fresh id.
func New(typ Type, jobID int64, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		JobID:      jobID,
		OccurredAt: at.UTC(),
	}
}

// Bus delivers events. Implementations must not block past ctx.
type Bus interface {
	Publish(ctx context.Context, evt Event) error
}

// LogBus records events in the log only. It backs deployments without a
// broker.
type LogBus struct {
	logger *slog.Logger
}

func NewLogBus(logger *slog.Logger) *LogBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogBus{logger: logger}
}

func (b *LogBus) Publish(_ context.Context, evt Event) error {
	b.logger.Info("event published",
		slog.String("event_id", evt.ID),
		slog.String("type", string(evt.Type)),
		slog.Int64("job_id", evt.JobID),
		slog.Int64("user_id", evt.UserID),
	)
	return nil
}
