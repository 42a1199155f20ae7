package authlink

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventUserCreated    ActivityEventType = "auth.user.created"
	ActivityEventAuthLinked     ActivityEventType = "auth.identity.linked"
	ActivityEventAuthUpdated    ActivityEventType = "auth.identity.updated"
	ActivityEventTokenIssued    ActivityEventType = "auth.token.issued"
	ActivityEventTokenRevoked   ActivityEventType = "auth.token.revoked"
	ActivityEventLoginAttempted ActivityEventType = "auth.login.attempted"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Provider   string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// emitActivity records evt and logs sink failures. Activity never fails the
// calling operation.
func emitActivity(ctx context.Context, sink ActivitySink, logger Logger, evt ActivityEvent) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	if err := sink.Record(ctx, evt); err != nil {
		logger.Warn("activity sink failed", "event", string(evt.EventType), "error", err)
	}
}
