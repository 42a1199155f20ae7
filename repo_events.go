package authlink

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// uses and attempts are append-only logs keyed by their owner.

type uses struct {
	repository.Repository[*Use]
	db bun.IDB
}

var _ UseStore = (*uses)(nil)

func newUses(db *bun.DB, idb bun.IDB) *uses {
	repo := repository.NewRepository[*Use](db, repository.ModelHandlers[*Use]{
		NewRecord: func() *Use { return &Use{} },
		GetID: func(u *Use) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *Use, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})
	return &uses{Repository: repo, db: idb}
}

func (r *uses) Create(ctx context.Context, record *Use) (*Use, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return r.Repository.CreateTx(ctx, r.db, record)
}

func (r *uses) ListByToken(ctx context.Context, tokenID uuid.UUID) ([]*Use, error) {
	var records []*Use
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.token_id = ?", tokenID).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}
	return records, nil
}

// Exists reports whether at least one use was recorded for tokenID.
func (r *uses) Exists(ctx context.Context, tokenID uuid.UUID) (bool, error) {
	return r.db.NewSelect().
		Model((*Use)(nil)).
		Where("?TableAlias.token_id = ?", tokenID).
		Exists(ctx)
}

type attempts struct {
	repository.Repository[*Attempt]
	db bun.IDB
}

var _ AttemptStore = (*attempts)(nil)

func newAttempts(db *bun.DB, idb bun.IDB) *attempts {
	repo := repository.NewRepository[*Attempt](db, repository.ModelHandlers[*Attempt]{
		NewRecord: func() *Attempt { return &Attempt{} },
		GetID: func(a *Attempt) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Attempt, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})
	return &attempts{Repository: repo, db: idb}
}

func (r *attempts) Create(ctx context.Context, record *Attempt) (*Attempt, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return r.Repository.CreateTx(ctx, r.db, record)
}

func (r *attempts) ListByUser(ctx context.Context, userID uuid.UUID, since time.Time) ([]*Attempt, error) {
	var records []*Attempt
	q := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID)
	if !since.IsZero() {
		q = q.Where("?TableAlias.created_at >= ?", since.UTC())
	}
	err := q.OrderExpr("?TableAlias.created_at DESC").Scan(ctx)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}
	return records, nil
}
