package routerauth

import (
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-authlink"
)

// RouteConfig controls the endpoints registered by RegisterRoutes.
type RouteConfig struct {
	IssuePath      string
	IssueRouteName string
	MePath         string
	MeRouteName    string
	LocalsKey      string
	Logger         authlink.Logger
}

const (
	defaultIssuePath      = "/user/jwt"
	defaultIssueRouteName = "authlink.jwt.issue"
	defaultMePath         = "/user/me"
	defaultMeRouteName    = "authlink.user.me"
)

func routeConfigDefault(cfg ...RouteConfig) RouteConfig {
	conf := RouteConfig{
		IssuePath:      defaultIssuePath,
		IssueRouteName: defaultIssueRouteName,
		MePath:         defaultMePath,
		MeRouteName:    defaultMeRouteName,
		LocalsKey:      DefaultLocalsKey,
		Logger:         authlink.NoopLogger(),
	}
	if len(cfg) == 0 {
		return conf
	}

	c := cfg[0]
	if c.IssuePath != "" {
		conf.IssuePath = c.IssuePath
	}
	if c.IssueRouteName != "" {
		conf.IssueRouteName = c.IssueRouteName
	}
	if c.MePath != "" {
		conf.MePath = c.MePath
	}
	if c.MeRouteName != "" {
		conf.MeRouteName = c.MeRouteName
	}
	if c.LocalsKey != "" {
		conf.LocalsKey = c.LocalsKey
	}
	if c.Logger != nil {
		conf.Logger = c.Logger
	}
	return conf
}

// RegisterRoutes registers the token issuance endpoint and a protected
// endpoint returning the current user.
func RegisterRoutes[T any](app router.Router[T], tokens *authlink.TokenManager, cfg authlink.Config, routeCfg ...RouteConfig) {
	conf := routeConfigDefault(routeCfg...)
	app.Get(conf.IssuePath, IssueHandler(tokens, cfg, conf)).SetName(conf.IssueRouteName)
	app.Get(conf.MePath, ProtectedRoute(tokens, conf)(meHandler(conf))).SetName(conf.MeRouteName)
}

// ProtectedRoute rejects requests without a valid token and exposes the
// user to next through the standard context. The session locals are only
// written by the token manager, which skips them in stateless mode.
func ProtectedRoute(tokens *authlink.TokenManager, routeCfg ...RouteConfig) router.MiddlewareFunc {
	conf := routeConfigDefault(routeCfg...)
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			req := NewRequest(ctx, conf.LocalsKey)
			user, err := tokens.ValidateRequest(ctx.Context(), req)
			if err != nil {
				return fail(ctx, conf.Logger, err)
			}
			ctx.SetContext(authlink.WithContext(ctx.Context(), user))
			return next(ctx)
		}
	}
}

// IssueHandler issues a token to the user already present in the request,
// placed there by an upstream authentication step.
func IssueHandler(tokens *authlink.TokenManager, cfg authlink.Config, routeCfg ...RouteConfig) router.HandlerFunc {
	conf := routeConfigDefault(routeCfg...)
	return func(ctx router.Context) error {
		req := NewRequest(ctx, conf.LocalsKey)
		user, _ := req.SessionUser(ctx.Context())

		issued, err := tokens.IssueToken(ctx.Context(), user,
			authlink.WithDiscriminator(req.RemoteAddress().IP),
		)
		if err != nil {
			return fail(ctx, conf.Logger, err)
		}
		return ctx.JSON(router.StatusOK, issued.Response(cfg))
	}
}

func meHandler(conf RouteConfig) router.HandlerFunc {
	return func(ctx router.Context) error {
		user, ok := authlink.FromContext(ctx.Context())
		if !ok {
			return fail(ctx, conf.Logger, authlink.ErrTokenMissing)
		}
		return ctx.JSON(router.StatusOK, user)
	}
}

func fail(ctx router.Context, logger authlink.Logger, err error) error {
	status := authlink.HTTPStatus(err)
	logger.Debug("authlink request failed",
		append([]any{"path", ctx.Path(), "status", status}, authlink.LogFields(err)...)...,
	)
	return ctx.JSON(status, map[string]string{
		"error": authlink.PublicMessage(err),
	})
}
