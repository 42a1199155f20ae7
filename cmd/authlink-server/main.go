package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/goliatone/go-authlink"
	"github.com/goliatone/go-authlink/activitymap"
	"github.com/goliatone/go-authlink/config"
	"github.com/goliatone/go-authlink/metrics"
	"github.com/goliatone/go-authlink/transport/fiberauth"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	lgr := authlink.NewLogger("authlink", cfg.LogLevel)
	logger := lgr.GetLogger("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lgr); err != nil {
		logger.Error("failed to serve", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Options, lgr authlink.LoggerProvider) error {
	logger := lgr.GetLogger("server")

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := authlink.EnsureSchema(ctx, db); err != nil {
		return err
	}

	store := authlink.NewBunStore(db)
	store.MustValidate()

	codec, err := authlink.NewCodec(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	deps := authlink.Deps{
		Store:    store,
		Codec:    codec,
		Config:   cfg,
		Loggers:  lgr,
		Metrics:  metrics.NewCollector(reg),
		Activity: activitymap.LogSink(lgr.GetLogger("activity")),
	}

	tokens, err := authlink.NewTokenManager(deps)
	if err != nil {
		return err
	}
	defer tokens.Wait()

	adapterOpts := []fiberauth.Option{fiberauth.WithLogger(lgr.GetLogger("fiberauth"))}
	if cfg.LoginProvider != "" {
		linker, err := authlink.NewLinker(deps)
		if err != nil {
			return err
		}
		attempts, err := authlink.NewAttemptRecorder(deps)
		if err != nil {
			return err
		}
		adapterOpts = append(adapterOpts, fiberauth.WithLogin(linker, attempts,
			fiberauth.HeaderVerifier{Provider: cfg.LoginProvider}))
		logger.Info("login route enabled", "provider", cfg.LoginProvider)
	}

	sessions := session.New(session.Config{Expiration: cfg.SessionTTL})

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(reg)))
	fiberauth.New(tokens, store.Users(), sessions, cfg, adapterOpts...).RegisterRoutes(app)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("authlink server listening", "address", cfg.Address)
		errCh <- app.Listen(cfg.Address)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("authlink server shutting down")
	return app.ShutdownWithTimeout(cfg.ShutdownGrace)
}

func openDB(cfg *config.Options) (*bun.DB, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DatabaseDSN)))
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}
}
