package authlink

import (
	"maps"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the root aggregate. Auths, tokens and attempts point back to it.
type User struct {
	bun.BaseModel `bun:"table:auth_user,alias:usr"`
	ID            uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	Username      string         `bun:"username,nullzero" json:"username,omitempty"`
	Email         string         `bun:"email,nullzero" json:"email,omitempty"`
	Metadata      map[string]any `bun:"metadata,type:jsonb" json:"metadata,omitempty"`
	Auths         []*Auth        `bun:"rel:has-many,join:id=user_id" json:"auths,omitempty"`
	CreatedAt     time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// AuthByProvider returns the first linked auth for provider.
func (u *User) AuthByProvider(provider string) (*Auth, bool) {
	if u == nil {
		return nil, false
	}
	for _, a := range u.Auths {
		if a != nil && a.Provider == provider {
			return a, true
		}
	}
	return nil, false
}

// appendAuth adds auth to the in-memory set, replacing an entry with the
// same ID.
func (u *User) appendAuth(auth *Auth) {
	if u == nil || auth == nil {
		return
	}
	for i, a := range u.Auths {
		if a != nil && a.ID == auth.ID {
			u.Auths[i] = auth
			return
		}
	}
	u.Auths = append(u.Auths, auth)
}

// Auth is one identity assertion, local or third party, possibly linked to
// a User.
type Auth struct {
	bun.BaseModel `bun:"table:auth,alias:ath"`
	ID            uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	UserID        *uuid.UUID     `bun:"user_id,type:uuid" json:"user_id,omitempty"`
	User          *User          `bun:"rel:belongs-to,join:user_id=id" json:"-"`
	Provider      string         `bun:"provider,notnull" json:"provider"`
	ThirdPartyID  string         `bun:"third_party_id" json:"third_party_id,omitempty"`
	Email         string         `bun:"email" json:"email,omitempty"`
	Name          string         `bun:"name" json:"name,omitempty"`
	Username      string         `bun:"username" json:"username,omitempty"`
	Attributes    map[string]any `bun:"attributes,type:jsonb" json:"attributes,omitempty"`
	CreatedAt     time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// IsLinked reports whether the auth has an owning user.
func (a *Auth) IsLinked() bool {
	return a != nil && a.UserID != nil && *a.UserID != uuid.Nil
}

// LinkTo sets the owning user.
func (a *Auth) LinkTo(userID uuid.UUID) {
	id := userID
	a.UserID = &id
}

// Differs reports whether merging attrs into a would change any field.
// Zero values in attrs are ignored, so a partial attribute set only compares
// the fields it carries.
func (a *Auth) Differs(attrs *Auth) bool {
	if attrs == nil {
		return false
	}
	if attrs.Provider != "" && attrs.Provider != a.Provider {
		return true
	}
	if attrs.ThirdPartyID != "" && attrs.ThirdPartyID != a.ThirdPartyID {
		return true
	}
	if attrs.Email != "" && attrs.Email != a.Email {
		return true
	}
	if attrs.Name != "" && attrs.Name != a.Name {
		return true
	}
	if attrs.Username != "" && attrs.Username != a.Username {
		return true
	}
	for k, v := range attrs.Attributes {
		cur, ok := a.Attributes[k]
		if !ok || !reflect.DeepEqual(cur, v) {
			return true
		}
	}
	return false
}

// Merge copies the non-zero fields of attrs into a. It returns true when
// something changed.
func (a *Auth) Merge(attrs *Auth) bool {
	if !a.Differs(attrs) {
		return false
	}
	if attrs.Provider != "" {
		a.Provider = attrs.Provider
	}
	if attrs.ThirdPartyID != "" {
		a.ThirdPartyID = attrs.ThirdPartyID
	}
	if attrs.Email != "" {
		a.Email = attrs.Email
	}
	if attrs.Name != "" {
		a.Name = attrs.Name
	}
	if attrs.Username != "" {
		a.Username = attrs.Username
	}
	if len(attrs.Attributes) > 0 {
		if a.Attributes == nil {
			a.Attributes = make(map[string]any, len(attrs.Attributes))
		}
		maps.Copy(a.Attributes, attrs.Attributes)
	}
	return true
}

// Token is the persisted record of an issued bearer token.
type Token struct {
	bun.BaseModel `bun:"table:auth_jwt,alias:jwt"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Token         string    `bun:"token,notnull,unique" json:"token"`
	OwnerID       uuid.UUID `bun:"owner_id,notnull,type:uuid" json:"owner_id"`
	Revoked       bool      `bun:"revoked,notnull" json:"revoked"`
	ExpiresAt     time.Time `bun:"expires_at,nullzero" json:"expires_at"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// TokenState is the lifecycle state of a token at a given instant.
type TokenState string

const (
	TokenStateIssued  TokenState = "issued"
	TokenStateActive  TokenState = "active"
	TokenStateExpired TokenState = "expired"
	TokenStateRevoked TokenState = "revoked"
)

// StateAt reports the token state at now given whether any use was
// recorded. Revocation wins over expiry.
func (t *Token) StateAt(now time.Time, used bool) TokenState {
	switch {
	case t.Revoked:
		return TokenStateRevoked
	case !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt):
		return TokenStateExpired
	case used:
		return TokenStateActive
	}
	return TokenStateIssued
}

// Use records one validated request made with a token.
type Use struct {
	bun.BaseModel `bun:"table:auth_use,alias:usg"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	TokenID       uuid.UUID `bun:"token_id,notnull,type:uuid" json:"token_id"`
	RemoteAddress string    `bun:"remote_address" json:"remote_address"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Attempt records a login attempt.
type Attempt struct {
	bun.BaseModel `bun:"table:auth_attempt,alias:att"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Successful    bool      `bun:"successful,notnull" json:"successful"`
	IP            string    `bun:"ip" json:"ip,omitempty"`
	Port          string    `bun:"port" json:"port,omitempty"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}
