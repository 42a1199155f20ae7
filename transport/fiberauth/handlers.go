package fiberauth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/goliatone/go-authlink"
)

// Routes are the paths mounted by RegisterRoutes.
type Routes struct {
	Login     string
	IssueJWT  string
	Me        string
	RevokeJWT string
}

// DefaultRoutes mirrors the paths exposed by the token issuance action.
var DefaultRoutes = Routes{
	Login:     "/user/login",
	IssueJWT:  "/user/jwt",
	Me:        "/user/me",
	RevokeJWT: "/user/jwt/revoke",
}

// Adapter serves the token endpoints and protects routes.
type Adapter struct {
	tokens    *authlink.TokenManager
	users     authlink.UserStore
	sessions  *session.Store
	cfg       authlink.Config
	logger    authlink.Logger
	localsKey string
	routes    Routes

	linker   *authlink.Linker
	attempts *authlink.AttemptRecorder
	verifier Verifier
}

// Option configures an Adapter.
type Option func(*Adapter)

func WithLogger(logger authlink.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithLocalsKey(key string) Option {
	return func(a *Adapter) {
		if key != "" {
			a.localsKey = key
		}
	}
}

func WithRoutes(routes Routes) Option {
	return func(a *Adapter) {
		a.routes = routes
	}
}

// New builds an Adapter. sessions may be nil for stateless deployments, in
// which case token issuance always answers 403.
func New(tokens *authlink.TokenManager, users authlink.UserStore, sessions *session.Store, cfg authlink.Config, opts ...Option) *Adapter {
	a := &Adapter{
		tokens:    tokens,
		users:     users,
		sessions:  sessions,
		cfg:       cfg,
		logger:    authlink.NoopLogger(),
		localsKey: DefaultLocalsKey,
		routes:    DefaultRoutes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Request wraps c for the token lifecycle.
func (a *Adapter) Request(c *fiber.Ctx) *Request {
	return NewRequest(c, a.sessions, a.users).WithStoreTimeout(a.cfg.GetStoreTimeout())
}

// RegisterRoutes mounts the token endpoints on r. The login route is only
// mounted when WithLogin was given.
func (a *Adapter) RegisterRoutes(r fiber.Router) {
	if a.linker != nil && a.verifier != nil {
		r.Post(a.routes.Login, a.Login).Name("authlink.user.login")
	}
	r.Get(a.routes.IssueJWT, a.IssueJWT).Name("authlink.jwt.issue")
	r.Get(a.routes.Me, a.Middleware(), a.Me).Name("authlink.user.me")
	r.Post(a.routes.RevokeJWT, a.Middleware(), a.RevokeJWT).Name("authlink.jwt.revoke")
}

// Middleware rejects requests without a valid token. The user is stored in
// the locals and in the user context.
func (a *Adapter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := a.tokens.ValidateRequest(c.UserContext(), a.Request(c))
		if err != nil {
			return a.fail(c, err)
		}
		c.Locals(a.localsKey, user)
		c.SetUserContext(authlink.WithContext(c.UserContext(), user))
		return c.Next()
	}
}

// IssueJWT issues a token to the user authenticated in the session.
func (a *Adapter) IssueJWT(c *fiber.Ctx) error {
	req := a.Request(c)
	user, _ := req.SessionUser(c.UserContext())

	issued, err := a.tokens.IssueToken(c.UserContext(), user,
		authlink.WithDiscriminator(req.RemoteAddress().IP),
	)
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(issued.Response(a.cfg))
}

// Me returns the user validated by Middleware.
func (a *Adapter) Me(c *fiber.Ctx) error {
	user, ok := authlink.FromContext(c.UserContext())
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": authlink.PublicMessage(authlink.ErrTokenMissing),
		})
	}
	return c.JSON(user)
}

// RevokeJWT revokes the token the request was authenticated with.
func (a *Adapter) RevokeJWT(c *fiber.Ctx) error {
	token, _ := a.Request(c).AccessToken()
	if err := a.tokens.RevokeToken(c.UserContext(), token); err != nil {
		return a.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *Adapter) fail(c *fiber.Ctx, err error) error {
	status := authlink.HTTPStatus(err)
	a.logger.Debug("authlink request failed",
		append([]any{"path", c.Path(), "status", status}, authlink.LogFields(err)...)...,
	)
	return c.Status(status).JSON(fiber.Map{
		"error": authlink.PublicMessage(err),
	})
}
