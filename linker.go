package authlink

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// LinkResult is the user an auth ended up attached to.
type LinkResult struct {
	User *User
	Auth *Auth
	// Created is true when the user was created by this call.
	Created bool
	// Linked is true when the auth was attached to an existing user.
	Linked bool
	// Merged is true when the user already had an auth for the provider and
	// it was updated in place.
	Merged bool
}

// Linker unifies auth records from several providers under one user.
//
// An unlinked auth is matched to an existing user through another auth with
// the same email address. This is an account-linking heuristic: providers
// that do not verify email addresses make it possible for one person to
// claim another's account, so callers should only feed it verified emails.
type Linker struct {
	deps Deps
}

// NewLinker validates deps and returns a Linker.
func NewLinker(deps Deps) (*Linker, error) {
	if err := deps.validate(false); err != nil {
		return nil, err
	}
	return &Linker{deps: deps.withDefaults("linker")}, nil
}

// LinkAuth attaches auth to a user. An unlinked auth is merged into the user
// owning another auth with the same email, or into the user matching
// criteria, which is created from defaults when nothing matches. A linked
// auth is added to its owner's set unless the owner already has an auth for
// the provider. When the email owner already has an auth for the provider,
// that auth is updated in place, so a user never holds two auths for one
// provider. Calling it again with the same auth does not change anything.
func (l *Linker) LinkAuth(ctx context.Context, auth *Auth, criteria UserCriteria, defaults *User) (*LinkResult, error) {
	if err := l.deps.Schema.Validate(auth); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, l.deps.storeTimeout())
	defer cancel()

	var result *LinkResult
	err := l.deps.Store.RunInTx(ctx, func(ctx context.Context, tx IdentityStore) error {
		var err error
		result, err = l.linkAuth(ctx, tx, auth, criteria, defaults)
		return err
	})
	if err != nil {
		return nil, l.fail(ctx, "link_auth", err)
	}

	l.report(ctx, result)
	return result, nil
}

// AttachAuthToUser adds or updates the auth for attrs.Provider on user. An
// existing auth for the provider is updated in place when any field differs
// and left untouched otherwise.
func (l *Linker) AttachAuthToUser(ctx context.Context, attrs *Auth, user *User) (*User, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, newError(ErrValidation, nil, map[string]any{"user": "is required"})
	}
	if err := l.deps.Schema.Validate(attrs); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, l.deps.storeTimeout())
	defer cancel()

	var (
		out      *User
		outcome  = LinkOutcomeNoop
		attached *Auth
	)
	err := l.deps.Store.RunInTx(ctx, func(ctx context.Context, tx IdentityStore) error {
		loaded, err := tx.Users().FindWithAuths(ctx, user.ID)
		if err != nil {
			if IsNotFound(err) {
				return newError(ErrUserNotFound, err, map[string]any{"user_id": user.ID.String()})
			}
			return err
		}

		if existing, ok := loaded.AuthByProvider(attrs.Provider); ok {
			updated, changed, err := l.mergeInto(ctx, tx, loaded, existing, attrs)
			if err != nil {
				return err
			}
			out, attached = loaded, updated
			if changed {
				outcome = LinkOutcomeMerged
			}
			return nil
		}

		defaults := *attrs
		defaults.ID = uuid.Nil
		defaults.LinkTo(loaded.ID)
		auth, _, err := tx.Auths().FindOrCreate(ctx, AuthCriteria{
			UserID:   loaded.ID,
			Provider: attrs.Provider,
		}, &defaults)
		if err != nil {
			return err
		}
		loaded.appendAuth(auth)
		out, attached, outcome = loaded, auth, LinkOutcomeLinked
		return nil
	})
	if err != nil {
		return nil, l.fail(ctx, "attach_auth", err)
	}

	l.deps.Metrics.AuthLinked(outcome)
	if outcome != LinkOutcomeNoop {
		emitActivity(ctx, l.deps.Activity, l.deps.Logger, ActivityEvent{
			EventType: ActivityEventAuthUpdated,
			UserID:    out.ID.String(),
			Provider:  attached.Provider,
			Metadata:  map[string]any{"auth_id": attached.ID.String(), "outcome": outcome},
		})
	}
	return out, nil
}

// FindOrCreateAuth finds the auth matching criteria, creating it from attrs
// when missing, and links it with LinkAuth semantics.
func (l *Linker) FindOrCreateAuth(ctx context.Context, criteria AuthCriteria, attrs *Auth, userCriteria UserCriteria, userDefaults *User) (*LinkResult, error) {
	if criteria.IsZero() {
		return nil, newError(ErrValidation, nil, map[string]any{"criteria": "cannot be empty"})
	}
	if err := l.deps.Schema.Validate(attrs); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, l.deps.storeTimeout())
	defer cancel()

	var result *LinkResult
	err := l.deps.Store.RunInTx(ctx, func(ctx context.Context, tx IdentityStore) error {
		defaults := *attrs
		auth, _, err := tx.Auths().FindOrCreate(ctx, criteria, &defaults)
		if err != nil {
			return err
		}
		result, err = l.linkAuth(ctx, tx, auth, userCriteria, userDefaults)
		return err
	})
	if err != nil {
		return nil, l.fail(ctx, "find_or_create_auth", err)
	}

	l.report(ctx, result)
	return result, nil
}

// FindAuth returns the auth matching criteria and its owner, whose auth set
// holds only that auth. The user is nil for an unlinked auth.
func (l *Linker) FindAuth(ctx context.Context, criteria AuthCriteria) (*Auth, *User, error) {
	ctx, cancel := context.WithTimeout(ctx, l.deps.storeTimeout())
	defer cancel()

	auth, err := l.deps.Store.Auths().FindOne(ctx, criteria)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil, newError(ErrAuthNotFound, err, authCriteriaMeta(criteria))
		}
		return nil, nil, l.fail(ctx, "find_auth", err)
	}
	if !auth.IsLinked() {
		return auth, nil, nil
	}

	user, err := l.deps.Store.Users().FindByID(ctx, *auth.UserID)
	if err != nil {
		if IsNotFound(err) {
			return auth, nil, nil
		}
		return nil, nil, l.fail(ctx, "find_auth", err)
	}
	user.Auths = []*Auth{auth}
	return auth, user, nil
}

func (l *Linker) linkAuth(ctx context.Context, tx IdentityStore, auth *Auth, criteria UserCriteria, defaults *User) (*LinkResult, error) {
	if auth.IsLinked() {
		return l.relink(ctx, tx, auth)
	}

	if auth.Email != "" {
		other, err := tx.Auths().FindOne(ctx, AuthCriteria{Email: auth.Email, ExcludeID: auth.ID})
		if err != nil && !IsNotFound(err) {
			return nil, err
		}
		if err == nil && other.IsLinked() {
			owner, err := tx.Users().FindWithAuths(ctx, *other.UserID)
			if err != nil {
				if IsNotFound(err) {
					return nil, newError(ErrUserNotFound, err, map[string]any{"user_id": other.UserID.String()})
				}
				return nil, err
			}
			if existing, ok := owner.AuthByProvider(auth.Provider); ok {
				updated, changed, err := l.mergeInto(ctx, tx, owner, existing, auth)
				if err != nil {
					return nil, err
				}
				return &LinkResult{User: owner, Auth: updated, Merged: changed}, nil
			}
			auth.LinkTo(owner.ID)
			saved, err := saveAuth(ctx, tx, auth)
			if err != nil {
				return nil, err
			}
			owner.appendAuth(saved)
			return &LinkResult{User: owner, Auth: saved, Linked: true}, nil
		}
	}

	user, created, err := tx.Users().FindOrCreate(ctx, criteria, defaults)
	if err != nil {
		return nil, err
	}
	auth.LinkTo(user.ID)
	saved, err := saveAuth(ctx, tx, auth)
	if err != nil {
		return nil, err
	}

	if !created {
		if withAuths, err := tx.Users().FindWithAuths(ctx, user.ID); err == nil {
			user = withAuths
		} else if !IsNotFound(err) {
			return nil, err
		}
	}
	user.appendAuth(saved)

	return &LinkResult{User: user, Auth: saved, Created: created, Linked: !created}, nil
}

func (l *Linker) relink(ctx context.Context, tx IdentityStore, auth *Auth) (*LinkResult, error) {
	owner, err := tx.Users().FindWithAuths(ctx, *auth.UserID)
	if err != nil {
		if IsNotFound(err) {
			return nil, newError(ErrUserNotFound, err, map[string]any{"user_id": auth.UserID.String()})
		}
		return nil, err
	}

	if existing, ok := owner.AuthByProvider(auth.Provider); ok {
		return &LinkResult{User: owner, Auth: existing}, nil
	}

	saved, err := saveAuth(ctx, tx, auth)
	if err != nil {
		return nil, err
	}
	owner.appendAuth(saved)
	return &LinkResult{User: owner, Auth: saved, Linked: true}, nil
}

// mergeInto updates user's existing auth for a provider with attrs instead
// of adding a second auth for the same provider.
func (l *Linker) mergeInto(ctx context.Context, tx IdentityStore, user *User, existing, attrs *Auth) (*Auth, bool, error) {
	if !existing.Merge(attrs) {
		return existing, false, nil
	}
	existing.LinkTo(user.ID)
	if err := l.deps.Schema.Validate(existing); err != nil {
		return nil, false, err
	}
	updated, err := tx.Auths().Update(ctx, existing)
	if err != nil {
		return nil, false, err
	}
	user.appendAuth(updated)
	return updated, true, nil
}

// saveAuth creates auth when it has not been stored yet and updates it
// otherwise.
func saveAuth(ctx context.Context, tx IdentityStore, auth *Auth) (*Auth, error) {
	if auth.ID == uuid.Nil {
		return tx.Auths().Create(ctx, auth)
	}
	if _, err := tx.Auths().FindOne(ctx, AuthCriteria{ID: auth.ID}); err != nil {
		if IsNotFound(err) {
			return tx.Auths().Create(ctx, auth)
		}
		return nil, err
	}
	return tx.Auths().Update(ctx, auth)
}

func (l *Linker) report(ctx context.Context, result *LinkResult) {
	if result == nil || result.User == nil {
		return
	}

	outcome := LinkOutcomeNoop
	switch {
	case result.Created:
		outcome = LinkOutcomeCreated
	case result.Linked:
		outcome = LinkOutcomeLinked
	case result.Merged:
		outcome = LinkOutcomeMerged
	}
	l.deps.Metrics.AuthLinked(outcome)

	if result.Merged && result.Auth != nil {
		emitActivity(ctx, l.deps.Activity, l.deps.Logger, ActivityEvent{
			EventType: ActivityEventAuthUpdated,
			UserID:    result.User.ID.String(),
			Provider:  result.Auth.Provider,
			Metadata:  map[string]any{"auth_id": result.Auth.ID.String(), "outcome": LinkOutcomeMerged},
		})
	}

	if result.Created {
		emitActivity(ctx, l.deps.Activity, l.deps.Logger, ActivityEvent{
			EventType: ActivityEventUserCreated,
			UserID:    result.User.ID.String(),
		})
	}
	if result.Created || result.Linked {
		evt := ActivityEvent{
			EventType: ActivityEventAuthLinked,
			UserID:    result.User.ID.String(),
		}
		if result.Auth != nil {
			evt.Provider = result.Auth.Provider
			evt.Metadata = map[string]any{"auth_id": result.Auth.ID.String()}
		}
		emitActivity(ctx, l.deps.Activity, l.deps.Logger, evt)
	}
}

// fail keeps the domain errors raised inside a transaction and wraps
// everything else as a store failure.
func (l *Linker) fail(ctx context.Context, op string, err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.TextCode {
		case TextCodeUserNotFound, TextCodeValidation, TextCodeAuthNotFound, TextCodeStoreError:
			return err
		}
	}
	l.deps.Logger.Error("identity store operation failed", "operation", op, "error", err, "deadline_exceeded", ctx.Err() != nil)
	return storeError(op, err)
}
