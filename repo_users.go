package authlink

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type users struct {
	repository.Repository[*User]
	db bun.IDB
}

var _ UserStore = (*users)(nil)

func newUsers(db *bun.DB, idb bun.IDB) *users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})
	return &users{Repository: repo, db: idb}
}

func (r *users) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.findOne(ctx, UserCriteria{ID: id})
}

func (r *users) FindWithAuths(ctx context.Context, id uuid.UUID) (*User, error) {
	record := &User{}
	err := r.db.NewSelect().
		Model(record).
		Relation("Auths").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, NotFound("user", map[string]any{"id": id.String()})
		}
		return nil, err
	}
	return record, nil
}

func (r *users) FindOrCreate(ctx context.Context, criteria UserCriteria, defaults *User) (*User, bool, error) {
	if !criteria.IsZero() {
		record, err := r.findOne(ctx, criteria)
		if err == nil {
			return record, false, nil
		}
		if !IsNotFound(err) {
			return nil, false, err
		}
	}

	record := &User{}
	if defaults != nil {
		*record = *defaults
		record.Auths = nil
	}
	if record.Email == "" {
		record.Email = criteria.Email
	}
	if record.Username == "" {
		record.Username = criteria.Username
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	prepareTimestamps(&record.CreatedAt, &record.UpdatedAt)

	created, err := r.Repository.CreateTx(ctx, r.db, record)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (r *users) findOne(ctx context.Context, criteria UserCriteria) (*User, error) {
	record := &User{}
	q := r.db.NewSelect().Model(record)
	if criteria.ID != uuid.Nil {
		q = q.Where("?TableAlias.id = ?", criteria.ID)
	}
	if criteria.Email != "" {
		q = q.Where("?TableAlias.email = ?", criteria.Email)
	}
	if criteria.Username != "" {
		q = q.Where("?TableAlias.username = ?", criteria.Username)
	}

	err := q.Limit(1).Scan(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, NotFound("user", map[string]any{
				"id":       criteria.ID.String(),
				"email":    criteria.Email,
				"username": criteria.Username,
			})
		}
		return nil, err
	}
	return record, nil
}

func prepareTimestamps(created, updated *time.Time) {
	now := time.Now().UTC()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}
