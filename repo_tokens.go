package authlink

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type tokens struct {
	repository.Repository[*Token]
	db bun.IDB
}

var _ TokenStore = (*tokens)(nil)

func newTokens(db *bun.DB, idb bun.IDB) *tokens {
	repo := repository.NewRepository[*Token](db, repository.ModelHandlers[*Token]{
		NewRecord: func() *Token { return &Token{} },
		GetID: func(t *Token) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Token, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})
	return &tokens{Repository: repo, db: idb}
}

func (r *tokens) Create(ctx context.Context, record *Token) (*Token, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return r.Repository.CreateTx(ctx, r.db, record)
}

func (r *tokens) FindByToken(ctx context.Context, token string) (*Token, error) {
	record := &Token{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, NotFound("token", nil)
		}
		return nil, err
	}
	return record, nil
}

func (r *tokens) Revoke(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewUpdate().
		Model((*Token)(nil)).
		Set("revoked = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NotFound("token", map[string]any{"id": id.String()})
	}
	return nil
}

func (r *tokens) RevokeByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	res, err := r.db.NewUpdate().
		Model((*Token)(nil)).
		Set("revoked = ?", true).
		Where("owner_id = ?", ownerID).
		Where("revoked = ?", false).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
