package authlink

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Deps carries the collaborators shared by the linker, the token manager and
// the attempt recorder. Store, Codec and Config are required; the rest
// default to no-op implementations. When Loggers is set each component takes
// its named logger from it in preference to Logger.
type Deps struct {
	Store    IdentityStore
	Codec    *Codec
	Config   Config
	Logger   Logger
	Loggers  LoggerProvider
	Metrics  Metrics
	Activity ActivitySink
	Schema   *Schema
	// Now is the clock used for token checks. Defaults to time.Now.
	Now func() time.Time
}

func (d Deps) validate(requireCodec bool) error {
	if d.Store == nil {
		return goerrors.New("identity store is required", goerrors.CategoryBadInput)
	}
	if d.Config == nil {
		return goerrors.New("config is required", goerrors.CategoryBadInput)
	}
	if requireCodec && d.Codec == nil {
		return goerrors.New("token codec is required", goerrors.CategoryBadInput)
	}
	return nil
}

func (d Deps) withDefaults(component string) Deps {
	d.Logger = ScopedLogger(d.Loggers, component, d.Logger)
	if d.Metrics == nil {
		d.Metrics = NoopMetrics()
	}
	d.Activity = normalizeActivitySink(d.Activity)
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

func (d Deps) storeTimeout() time.Duration {
	if d.Config != nil {
		if t := d.Config.GetStoreTimeout(); t > 0 {
			return t
		}
	}
	return DefaultStoreTimeout
}
