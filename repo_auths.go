package authlink

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type auths struct {
	repository.Repository[*Auth]
	db bun.IDB
}

var _ AuthStore = (*auths)(nil)

func newAuths(db *bun.DB, idb bun.IDB) *auths {
	repo := repository.NewRepository[*Auth](db, repository.ModelHandlers[*Auth]{
		NewRecord: func() *Auth { return &Auth{} },
		GetID: func(a *Auth) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Auth, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "third_party_id"
		},
	})
	return &auths{Repository: repo, db: idb}
}

func (r *auths) FindOne(ctx context.Context, criteria AuthCriteria) (*Auth, error) {
	if criteria.IsZero() {
		return nil, NotFound("auth", nil)
	}

	record := &Auth{}
	err := r.db.NewSelect().
		Model(record).
		Apply(authCriteriaQuery(criteria)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, NotFound("auth", authCriteriaMeta(criteria))
		}
		return nil, err
	}
	return record, nil
}

func (r *auths) FindOrCreate(ctx context.Context, criteria AuthCriteria, defaults *Auth) (*Auth, bool, error) {
	record, err := r.FindOne(ctx, criteria)
	if err == nil {
		return record, false, nil
	}
	if !IsNotFound(err) {
		return nil, false, err
	}

	record = &Auth{}
	if defaults != nil {
		*record = *defaults
		record.User = nil
	}
	if record.Provider == "" {
		record.Provider = criteria.Provider
	}
	if record.ThirdPartyID == "" {
		record.ThirdPartyID = criteria.ThirdPartyID
	}
	if record.Email == "" {
		record.Email = criteria.Email
	}
	if record.UserID == nil && criteria.UserID != uuid.Nil {
		record.LinkTo(criteria.UserID)
	}

	created, err := r.Create(ctx, record)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (r *auths) Create(ctx context.Context, record *Auth) (*Auth, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	prepareTimestamps(&record.CreatedAt, &record.UpdatedAt)
	return r.Repository.CreateTx(ctx, r.db, record)
}

func (r *auths) Update(ctx context.Context, record *Auth) (*Auth, error) {
	prepareTimestamps(nil, &record.UpdatedAt)
	return r.Repository.UpdateTx(ctx, r.db, record, repository.UpdateByID(record.ID.String()))
}

func (r *auths) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Auth, error) {
	var records []*Auth
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}
	return records, nil
}

func authCriteriaQuery(c AuthCriteria) func(*bun.SelectQuery) *bun.SelectQuery {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if c.ID != uuid.Nil {
			q = q.Where("?TableAlias.id = ?", c.ID)
		}
		if c.UserID != uuid.Nil {
			q = q.Where("?TableAlias.user_id = ?", c.UserID)
		}
		if c.Provider != "" {
			q = q.Where("?TableAlias.provider = ?", c.Provider)
		}
		if c.ThirdPartyID != "" {
			q = q.Where("?TableAlias.third_party_id = ?", c.ThirdPartyID)
		}
		if c.Email != "" {
			q = q.Where("?TableAlias.email = ?", c.Email)
		}
		if c.ExcludeID != uuid.Nil {
			q = q.Where("?TableAlias.id != ?", c.ExcludeID)
		}
		return q
	}
}

func authCriteriaMeta(c AuthCriteria) map[string]any {
	meta := map[string]any{}
	if c.ID != uuid.Nil {
		meta["id"] = c.ID.String()
	}
	if c.UserID != uuid.Nil {
		meta["user_id"] = c.UserID.String()
	}
	if c.Provider != "" {
		meta["provider"] = c.Provider
	}
	if c.ThirdPartyID != "" {
		meta["third_party_id"] = c.ThirdPartyID
	}
	if c.Email != "" {
		meta["email"] = c.Email
	}
	return meta
}
