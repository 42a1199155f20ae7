package fiberauth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-authlink"
)

// Verifier establishes the identity asserted by a login request. The
// returned auth must carry Provider and ThirdPartyID.
type Verifier interface {
	Verify(c *fiber.Ctx) (*authlink.Auth, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(c *fiber.Ctx) (*authlink.Auth, error)

func (f VerifierFunc) Verify(c *fiber.Ctx) (*authlink.Auth, error) { return f(c) }

const (
	DefaultUserHeader  = "X-Forwarded-User"
	DefaultEmailHeader = "X-Forwarded-Email"
	DefaultNameHeader  = "X-Forwarded-Preferred-Username"
)

// HeaderVerifier trusts the identity headers set by an authenticating reverse
// proxy. Only mount it behind a proxy that strips these headers from client
// requests.
type HeaderVerifier struct {
	Provider    string
	UserHeader  string
	EmailHeader string
	NameHeader  string
}

func (v HeaderVerifier) Verify(c *fiber.Ctx) (*authlink.Auth, error) {
	id := strings.TrimSpace(c.Get(orDefault(v.UserHeader, DefaultUserHeader)))
	if id == "" || v.Provider == "" {
		return nil, authlink.ErrNotAuthenticated
	}
	return &authlink.Auth{
		Provider:     v.Provider,
		ThirdPartyID: id,
		Email:        strings.TrimSpace(c.Get(orDefault(v.EmailHeader, DefaultEmailHeader))),
		Username:     strings.TrimSpace(c.Get(orDefault(v.NameHeader, DefaultNameHeader))),
	}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// WithLogin enables the login route. verifier proves the identity, linker
// resolves it to a user and attempts, when not nil, records each login.
func WithLogin(linker *authlink.Linker, attempts *authlink.AttemptRecorder, verifier Verifier) Option {
	return func(a *Adapter) {
		a.linker = linker
		a.attempts = attempts
		a.verifier = verifier
	}
}

// Login links the verified identity to a user and authenticates the session
// so the token endpoint can issue to it.
func (a *Adapter) Login(c *fiber.Ctx) error {
	if a.linker == nil || a.verifier == nil {
		return a.fail(c, authlink.ErrNotAuthenticated)
	}

	attrs, err := a.verifier.Verify(c)
	if err != nil {
		return a.fail(c, err)
	}

	ctx := c.UserContext()
	result, err := a.linker.FindOrCreateAuth(ctx,
		authlink.AuthCriteria{Provider: attrs.Provider, ThirdPartyID: attrs.ThirdPartyID},
		attrs,
		authlink.UserCriteria{},
		&authlink.User{Email: attrs.Email, Username: attrs.Username},
	)
	if err != nil {
		return a.fail(c, err)
	}

	req := a.Request(c)
	if err := req.BindSessionUser(ctx, result.User); err != nil {
		a.logger.Error("login session bind failed", "user_id", result.User.ID.String(), "error", err)
		return a.fail(c, authlink.ErrNotAuthenticated)
	}

	if a.attempts != nil {
		if _, err := a.attempts.Record(ctx, result.User.ID, true, req.RemoteAddress()); err != nil {
			a.logger.Warn("login attempt not recorded", "user_id", result.User.ID.String(), "error", err)
		}
	}

	status := fiber.StatusOK
	if result.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(result.User)
}
