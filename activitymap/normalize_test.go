package activitymap_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-authlink"
	"github.com/goliatone/go-authlink/activitymap"
)

func TestNormalizeIdentityEvent(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := authlink.ActivityEvent{
		EventType:  authlink.ActivityEventAuthLinked,
		UserID:     "user-100",
		Provider:   "github",
		Metadata:   map[string]any{"auth_id": "auth-7"},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "user-100" {
		t.Fatalf("expected actor_id user-100, got %q", out.ActorID)
	}
	if out.Verb != string(authlink.ActivityEventAuthLinked) {
		t.Fatalf("expected verb %q, got %q", authlink.ActivityEventAuthLinked, out.Verb)
	}
	if out.ObjectType != "auth" || out.ObjectID != "auth-7" {
		t.Fatalf("expected object auth/auth-7, got %s/%s", out.ObjectType, out.ObjectID)
	}
	if out.Channel != "auth" {
		t.Fatalf("expected channel auth, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}
	if out.Metadata[activitymap.MetadataKeyProvider] != "github" {
		t.Fatalf("expected metadata provider github, got %#v", out.Metadata[activitymap.MetadataKeyProvider])
	}

	out.Metadata["auth_id"] = "changed"
	if event.Metadata["auth_id"] != "auth-7" {
		t.Fatalf("expected source metadata to be untouched")
	}
}

func TestNormalizeTokenAndFallbacks(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(authlink.ActivityEvent{
		EventType: authlink.ActivityEventTokenRevoked,
		Metadata:  map[string]any{"count": 3},
	}, activitymap.WithChannel("audit"), activitymap.WithActorFallback("cron"))

	if out.ActorID != "cron" {
		t.Fatalf("expected actor fallback cron, got %q", out.ActorID)
	}
	if out.ObjectType != "user" {
		t.Fatalf("expected user object without token_id, got %q", out.ObjectType)
	}
	if out.Channel != "audit" {
		t.Fatalf("expected channel audit, got %q", out.Channel)
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be set")
	}

	issued := activitymap.Normalize(authlink.ActivityEvent{
		EventType: authlink.ActivityEventTokenIssued,
		UserID:    "user-1",
		Metadata:  map[string]any{"token_id": "tok-1"},
	})
	if issued.ObjectType != "token" || issued.ObjectID != "tok-1" {
		t.Fatalf("expected object token/tok-1, got %s/%s", issued.ObjectType, issued.ObjectID)
	}
	if issued.Metadata[activitymap.MetadataKeyProvider] != nil {
		t.Fatalf("expected no provider metadata")
	}
}

type recordingLogger struct {
	infos []string
}

func (l *recordingLogger) Debug(string, ...any)         {}
func (l *recordingLogger) Info(msg string, args ...any) { l.infos = append(l.infos, msg) }
func (l *recordingLogger) Warn(string, ...any)          {}
func (l *recordingLogger) Error(string, ...any)         {}

func TestLogSink(t *testing.T) {
	logger := &recordingLogger{}
	sink := activitymap.LogSink(logger)

	if err := sink.Record(context.Background(), authlink.ActivityEvent{EventType: authlink.ActivityEventUserCreated}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logger.infos) != 1 {
		t.Fatalf("expected one log line, got %d", len(logger.infos))
	}
}
