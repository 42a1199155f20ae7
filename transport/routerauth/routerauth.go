// Package routerauth wires the token lifecycle into go-router applications.
package routerauth

import (
	"context"

	"github.com/goliatone/go-router"

	"github.com/goliatone/go-authlink"
)

// DefaultLocalsKey is where the validated user is stored.
const DefaultLocalsKey = "user"

// tokenSource is the part of router.Context used to find the access token.
type tokenSource interface {
	Header(key string) string
	Query(key string, defaultValue ...string) string
	Cookies(key string, defaultValue ...string) string
}

func accessToken(src tokenSource) (string, bool) {
	return authlink.FirstToken(
		src.Header(router.HeaderAuthorization),
		src.Header(authlink.AccessTokenKey),
		src.Query(authlink.AccessTokenKey, ""),
		src.Cookies(authlink.AccessTokenKey),
	)
}

// Request adapts a router.Context. go-router has no session store, so the
// session user lives in the request locals for the rest of the handler
// chain.
type Request struct {
	ctx       router.Context
	localsKey string
}

var (
	_ authlink.Request        = (*Request)(nil)
	_ authlink.SessionRequest = (*Request)(nil)
)

// NewRequest wraps ctx.
func NewRequest(ctx router.Context, localsKey string) *Request {
	if localsKey == "" {
		localsKey = DefaultLocalsKey
	}
	return &Request{ctx: ctx, localsKey: localsKey}
}

func (r *Request) AccessToken() (string, bool) {
	return accessToken(r.ctx)
}

func (r *Request) RemoteAddress() authlink.RemoteAddress {
	return authlink.RemoteAddress{IP: r.ctx.IP()}
}

func (r *Request) BindSessionUser(ctx context.Context, user *authlink.User) error {
	r.ctx.Locals(r.localsKey, user)
	return nil
}

func (r *Request) SessionUser(ctx context.Context) (*authlink.User, bool) {
	user, ok := r.ctx.Locals(r.localsKey).(*authlink.User)
	return user, ok && user != nil
}
