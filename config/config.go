// Package config loads the authlink options from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-authlink"
)

// Options is the process configuration. It implements authlink.Config.
type Options struct {
	SigningKey               string        `env:"AUTHLINK_SIGNING_KEY"`
	SigningMethod            string        `env:"AUTHLINK_SIGNING_METHOD"              envDefault:"HS256"`
	Audience                 string        `env:"AUTHLINK_AUDIENCE"`
	Subject                  string        `env:"AUTHLINK_SUBJECT"                     envDefault:"authlink"`
	TokenTTL                 time.Duration `env:"AUTHLINK_TOKEN_TTL"                   envDefault:"168h"`
	Stateless                bool          `env:"AUTHLINK_STATELESS"                   envDefault:"false"`
	TrackUsage               bool          `env:"AUTHLINK_TRACK_USAGE"                 envDefault:"true"`
	TokenProperty            string        `env:"AUTHLINK_TOKEN_PROPERTY"              envDefault:"token"`
	ExpiresProperty          string        `env:"AUTHLINK_EXPIRES_PROPERTY"            envDefault:"expires"`
	IncludeUserInJwtResponse bool          `env:"AUTHLINK_INCLUDE_USER_IN_JWT_RESPONSE" envDefault:"false"`
	StoreTimeout             time.Duration `env:"AUTHLINK_STORE_TIMEOUT"               envDefault:"5s"`

	Address        string        `env:"AUTHLINK_ADDRESS"          envDefault:":8080"`
	DatabaseDriver string        `env:"AUTHLINK_DB_DRIVER"        envDefault:"sqlite"`
	DatabaseDSN    string        `env:"AUTHLINK_DB_DSN"           envDefault:"file::memory:?cache=shared"`
	SessionTTL     time.Duration `env:"AUTHLINK_SESSION_TTL"      envDefault:"24h"`
	ShutdownGrace  time.Duration `env:"AUTHLINK_SHUTDOWN_GRACE"   envDefault:"10s"`
	LogLevel       string        `env:"AUTHLINK_LOG_LEVEL"        envDefault:"info"`
	// LoginProvider enables the login route, trusting the identity headers
	// of an authenticating reverse proxy under this provider name.
	LoginProvider string `env:"AUTHLINK_LOGIN_PROVIDER"`
}

var _ authlink.Config = (*Options)(nil)

// FromEnv parses the process environment and validates the result.
func FromEnv() (*Options, error) {
	return parse(env.Options{})
}

// FromMap parses vars instead of the process environment.
func FromMap(vars map[string]string) (*Options, error) {
	if vars == nil {
		vars = map[string]string{}
	}
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Options, error) {
	o := &Options{}
	if err := env.ParseWithOptions(o, opts); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "parse env")
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Validate checks the option values.
func (o *Options) Validate() error {
	err := validation.ValidateStruct(o,
		validation.Field(&o.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&o.SigningMethod, validation.Required, validation.In("HS256", "HS384", "HS512")),
		validation.Field(&o.TokenTTL, validation.By(positiveDuration)),
		validation.Field(&o.StoreTimeout, validation.By(positiveDuration)),
		validation.Field(&o.TokenProperty, validation.Required),
		validation.Field(&o.ExpiresProperty, validation.Required),
		validation.Field(&o.DatabaseDriver, validation.Required, validation.In("sqlite", "postgres")),
		validation.Field(&o.LogLevel, validation.In("trace", "debug", "info", "warn", "error")),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration").
			WithTextCode("CONFIG_INVALID")
	}
	return nil
}

func positiveDuration(value any) error {
	d, ok := value.(time.Duration)
	if !ok {
		return fmt.Errorf("must be a duration")
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func (o *Options) GetSigningKey() string             { return o.SigningKey }
func (o *Options) GetSigningMethod() string          { return o.SigningMethod }
func (o *Options) GetAudience() string               { return o.Audience }
func (o *Options) GetSubject() string                { return o.Subject }
func (o *Options) GetTokenTTL() time.Duration        { return o.TokenTTL }
func (o *Options) GetStateless() bool                { return o.Stateless }
func (o *Options) GetTrackUsage() bool               { return o.TrackUsage }
func (o *Options) GetTokenProperty() string          { return o.TokenProperty }
func (o *Options) GetExpiresProperty() string        { return o.ExpiresProperty }
func (o *Options) GetIncludeUserInJwtResponse() bool { return o.IncludeUserInJwtResponse }
func (o *Options) GetStoreTimeout() time.Duration    { return o.StoreTimeout }
