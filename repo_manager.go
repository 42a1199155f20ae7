package authlink

import (
	"context"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// BunStore is the IdentityStore backed by bun. It works with any dialect
// bun supports; the server uses Postgres and the tests use SQLite.
type BunStore struct {
	db       *bun.DB
	idb      bun.IDB
	inTx     bool
	users    *users
	auths    *auths
	tokens   *tokens
	uses     *uses
	attempts *attempts
}

var (
	_ IdentityStore        = (*BunStore)(nil)
	_ repository.Validator = (*BunStore)(nil)
)

// NewBunStore returns a store that runs every call directly against db.
func NewBunStore(db *bun.DB) *BunStore {
	return newBunStore(db, db, false)
}

func newBunStore(db *bun.DB, idb bun.IDB, inTx bool) *BunStore {
	return &BunStore{
		db:       db,
		idb:      idb,
		inTx:     inTx,
		users:    newUsers(db, idb),
		auths:    newAuths(db, idb),
		tokens:   newTokens(db, idb),
		uses:     newUses(db, idb),
		attempts: newAttempts(db, idb),
	}
}

func (s *BunStore) Validate() error {
	if s.db == nil {
		return errors.New("bun store requires a database")
	}
	if s.users == nil || s.auths == nil || s.tokens == nil || s.uses == nil || s.attempts == nil {
		return errors.New("bun store repositories should be initialized")
	}
	return nil
}

func (s *BunStore) MustValidate() {
	if err := s.Validate(); err != nil {
		log.Panic(err)
	}
}

// RunInTx opens a transaction and hands fn a store bound to it. A store that
// is already bound to a transaction runs fn against itself.
func (s *BunStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx IdentityStore) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if s.inTx {
		return fn(ctx, s)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, newBunStore(s.db, tx, true))
	})
}

func (s *BunStore) Users() UserStore       { return s.users }
func (s *BunStore) Auths() AuthStore       { return s.auths }
func (s *BunStore) Tokens() TokenStore     { return s.tokens }
func (s *BunStore) Uses() UseStore         { return s.uses }
func (s *BunStore) Attempts() AttemptStore { return s.attempts }

// EnsureSchema creates the identity tables when they do not exist.
func EnsureSchema(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*User)(nil),
		(*Auth)(nil),
		(*Token)(nil),
		(*Use)(nil),
		(*Attempt)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
