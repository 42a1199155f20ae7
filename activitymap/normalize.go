// Package activitymap turns authlink activity events into a flat record
// that downstream audit pipelines can store as is.
package activitymap

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/goliatone/go-authlink"
)

const (
	// MetadataKeyProvider stores the auth provider of identity events.
	MetadataKeyProvider = "provider"

	defaultChannel = "auth"
	defaultActorID = "system"
)

// Normalized is a transport agnostic activity shape.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	actorFallback string
}

// WithChannel sets the channel of normalized records.
func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithActorFallback sets the actor used when the event has no user.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// Normalize converts evt. The object is the auth or token the event is
// about, falling back to the user.
func Normalize(evt authlink.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{channel: defaultChannel, actorFallback: defaultActorID}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	occurredAt := evt.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	objectType, objectID := resolveObject(evt)

	return Normalized{
		ActorID:    firstNonEmpty(strings.TrimSpace(evt.UserID), options.actorFallback),
		Verb:       string(evt.EventType),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    options.channel,
		Metadata:   normalizeMetadata(evt),
		OccurredAt: occurredAt,
	}
}

func resolveObject(evt authlink.ActivityEvent) (string, string) {
	switch evt.EventType {
	case authlink.ActivityEventAuthLinked, authlink.ActivityEventAuthUpdated:
		if id := metadataString(evt.Metadata, "auth_id"); id != "" {
			return "auth", id
		}
	case authlink.ActivityEventTokenIssued, authlink.ActivityEventTokenRevoked:
		if id := metadataString(evt.Metadata, "token_id"); id != "" {
			return "token", id
		}
	}
	return "user", strings.TrimSpace(evt.UserID)
}

func normalizeMetadata(evt authlink.ActivityEvent) map[string]any {
	var metadata map[string]any
	if len(evt.Metadata) > 0 {
		metadata = maps.Clone(evt.Metadata)
	}
	if provider := strings.TrimSpace(evt.Provider); provider != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[MetadataKeyProvider]; !exists {
			metadata[MetadataKeyProvider] = provider
		}
	}
	return metadata
}

func metadataString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

// LogSink writes every normalized event to logger at info level.
func LogSink(logger authlink.Logger, opts ...Option) authlink.ActivitySink {
	return authlink.ActivitySinkFunc(func(ctx context.Context, evt authlink.ActivityEvent) error {
		n := Normalize(evt, opts...)
		logger.Info("authlink activity",
			"verb", n.Verb,
			"actor_id", n.ActorID,
			"object_type", n.ObjectType,
			"object_id", n.ObjectID,
			"channel", n.Channel,
			"metadata", n.Metadata,
		)
		return nil
	})
}
