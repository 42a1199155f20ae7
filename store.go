package authlink

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// UserCriteria selects users. Zero fields are ignored; an empty criteria
// never matches an existing user.
type UserCriteria struct {
	ID       uuid.UUID
	Email    string
	Username string
}

// IsZero reports whether no field is set.
func (c UserCriteria) IsZero() bool {
	return c.ID == uuid.Nil && c.Email == "" && c.Username == ""
}

// AuthCriteria selects auths. Zero fields are ignored. ExcludeID removes one
// record from the match.
type AuthCriteria struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Provider     string
	ThirdPartyID string
	Email        string
	ExcludeID    uuid.UUID
}

// IsZero reports whether no selecting field is set.
func (c AuthCriteria) IsZero() bool {
	return c.ID == uuid.Nil && c.UserID == uuid.Nil && c.Provider == "" &&
		c.ThirdPartyID == "" && c.Email == ""
}

// Matches applies the criteria to an in-memory auth.
func (c AuthCriteria) Matches(a *Auth) bool {
	if a == nil {
		return false
	}
	if c.ExcludeID != uuid.Nil && a.ID == c.ExcludeID {
		return false
	}
	if c.ID != uuid.Nil && a.ID != c.ID {
		return false
	}
	if c.UserID != uuid.Nil && (a.UserID == nil || *a.UserID != c.UserID) {
		return false
	}
	if c.Provider != "" && a.Provider != c.Provider {
		return false
	}
	if c.ThirdPartyID != "" && a.ThirdPartyID != c.ThirdPartyID {
		return false
	}
	if c.Email != "" && a.Email != c.Email {
		return false
	}
	return true
}

// UserStore persists users. Finders return a record-not-found error
// (see IsNotFound) when nothing matches.
type UserStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	// FindWithAuths loads the user with its Auth set.
	FindWithAuths(ctx context.Context, id uuid.UUID) (*User, error)
	// FindOrCreate returns the user matching criteria, creating one from
	// defaults when none exists. The bool reports creation.
	FindOrCreate(ctx context.Context, criteria UserCriteria, defaults *User) (*User, bool, error)
}

// AuthStore persists auths.
type AuthStore interface {
	FindOne(ctx context.Context, criteria AuthCriteria) (*Auth, error)
	FindOrCreate(ctx context.Context, criteria AuthCriteria, defaults *Auth) (*Auth, bool, error)
	Create(ctx context.Context, auth *Auth) (*Auth, error)
	Update(ctx context.Context, auth *Auth) (*Auth, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Auth, error)
}

// TokenStore persists issued tokens.
type TokenStore interface {
	Create(ctx context.Context, token *Token) (*Token, error)
	FindByToken(ctx context.Context, token string) (*Token, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
}

// UseStore appends token usage records.
type UseStore interface {
	Create(ctx context.Context, use *Use) (*Use, error)
	ListByToken(ctx context.Context, tokenID uuid.UUID) ([]*Use, error)
	Exists(ctx context.Context, tokenID uuid.UUID) (bool, error)
}

// AttemptStore appends login attempts.
type AttemptStore interface {
	Create(ctx context.Context, attempt *Attempt) (*Attempt, error)
	ListByUser(ctx context.Context, userID uuid.UUID, since time.Time) ([]*Attempt, error)
}

// IdentityStore is the persistent repository the core works against.
type IdentityStore interface {
	Users() UserStore
	Auths() AuthStore
	Tokens() TokenStore
	Uses() UseStore
	Attempts() AttemptStore
	// RunInTx runs fn in a single unit of work. Stores without transactions
	// may run fn directly against themselves.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx IdentityStore) error) error
}

// IsNotFound reports whether err means no record matched.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows)
}

// NotFound builds the record-not-found error stores return.
func NotFound(entity string, meta map[string]any) error {
	m := map[string]any{"entity": entity}
	for k, v := range meta {
		m[k] = v
	}
	return repository.NewRecordNotFound().WithMetadata(m)
}
