package authlink

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AttemptRecorder appends login attempts for a user.
type AttemptRecorder struct {
	deps Deps
}

// NewAttemptRecorder validates deps and returns an AttemptRecorder.
func NewAttemptRecorder(deps Deps) (*AttemptRecorder, error) {
	if err := deps.validate(false); err != nil {
		return nil, err
	}
	return &AttemptRecorder{deps: deps.withDefaults("attempts")}, nil
}

// Record stores one attempt made from addr.
func (r *AttemptRecorder) Record(ctx context.Context, userID uuid.UUID, successful bool, addr RemoteAddress) (*Attempt, error) {
	if userID == uuid.Nil {
		return nil, newError(ErrValidation, nil, map[string]any{"user_id": "is required"})
	}

	ctx, cancel := context.WithTimeout(ctx, r.deps.storeTimeout())
	defer cancel()

	attempt, err := r.deps.Store.Attempts().Create(ctx, &Attempt{
		UserID:     userID,
		Successful: successful,
		IP:         addr.IP,
		Port:       addr.Port,
		CreatedAt:  r.deps.Now().UTC(),
	})
	if err != nil {
		return nil, storeError("record_attempt", err)
	}

	r.deps.Metrics.AttemptRecorded(successful)
	emitActivity(ctx, r.deps.Activity, r.deps.Logger, ActivityEvent{
		EventType: ActivityEventLoginAttempted,
		UserID:    userID.String(),
		Metadata:  map[string]any{"successful": successful, "ip": addr.IP},
	})
	return attempt, nil
}

// Recent lists the attempts made by userID since the given instant, newest
// first. A zero since returns every attempt.
func (r *AttemptRecorder) Recent(ctx context.Context, userID uuid.UUID, since time.Time) ([]*Attempt, error) {
	ctx, cancel := context.WithTimeout(ctx, r.deps.storeTimeout())
	defer cancel()

	attempts, err := r.deps.Store.Attempts().ListByUser(ctx, userID, since)
	if err != nil {
		return nil, storeError("recent_attempts", err)
	}
	return attempts, nil
}

// FailedSince counts the unsuccessful attempts in a list returned by Recent
// that happened after the last successful one.
func FailedSince(attempts []*Attempt) int {
	n := 0
	for _, a := range attempts {
		if a.Successful {
			break
		}
		n++
	}
	return n
}
