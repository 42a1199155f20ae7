// Package fiberauth wires the token lifecycle into a fiber application.
package fiberauth

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"

	"github.com/goliatone/go-authlink"
)

const (
	sessionAuthenticatedKey = "authenticated"
	sessionUserKey          = "user_id"

	// DefaultLocalsKey is where Middleware stores the validated user.
	DefaultLocalsKey = "user"
)

// Request adapts a fiber context to authlink.Request and
// authlink.SessionRequest.
type Request struct {
	c        *fiber.Ctx
	sessions *session.Store
	users    authlink.UserStore
	timeout  time.Duration
}

var (
	_ authlink.Request        = (*Request)(nil)
	_ authlink.SessionRequest = (*Request)(nil)
)

// NewRequest wraps c. users resolves the session user id.
func NewRequest(c *fiber.Ctx, sessions *session.Store, users authlink.UserStore) *Request {
	return &Request{c: c, sessions: sessions, users: users, timeout: authlink.DefaultStoreTimeout}
}

// WithStoreTimeout bounds the session user lookup. Non-positive values are
// ignored.
func (r *Request) WithStoreTimeout(d time.Duration) *Request {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// AccessToken looks at the Authorization header, then the access_token
// header, query parameter and cookie.
func (r *Request) AccessToken() (string, bool) {
	return authlink.FirstToken(
		r.c.Get(fiber.HeaderAuthorization),
		r.c.Get(authlink.AccessTokenKey),
		r.c.Query(authlink.AccessTokenKey),
		r.c.Cookies(authlink.AccessTokenKey),
	)
}

func (r *Request) RemoteAddress() authlink.RemoteAddress {
	return authlink.RemoteAddress{IP: r.c.IP(), Port: r.c.Port()}
}

// BindSessionUser marks the session as authenticated for user.
func (r *Request) BindSessionUser(ctx context.Context, user *authlink.User) error {
	if r.sessions == nil || user == nil {
		return nil
	}
	sess, err := r.sessions.Get(r.c)
	if err != nil {
		return err
	}
	sess.Set(sessionAuthenticatedKey, true)
	sess.Set(sessionUserKey, user.ID.String())
	return sess.Save()
}

// SessionUser loads the user bound to the session, if any.
func (r *Request) SessionUser(ctx context.Context) (*authlink.User, bool) {
	if r.sessions == nil || r.users == nil {
		return nil, false
	}
	sess, err := r.sessions.Get(r.c)
	if err != nil {
		return nil, false
	}
	if authenticated, _ := sess.Get(sessionAuthenticatedKey).(bool); !authenticated {
		return nil, false
	}
	raw, _ := sess.Get(sessionUserKey).(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	user, err := r.users.FindByID(ctx, id)
	if err != nil {
		return nil, false
	}
	return user, true
}

// Logout clears the session.
func (r *Request) Logout() error {
	if r.sessions == nil {
		return nil
	}
	sess, err := r.sessions.Get(r.c)
	if err != nil {
		return err
	}
	return sess.Destroy()
}
