// Command api runs the ScoutMe authentication API.
//
//	@title						ScoutMe API
//	@version					1.0
//	@description				Authentication and session lifecycle for the ScoutMe football scouting marketplace.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/scoutme/scoutme-api/internal/api"
	"github.com/scoutme/scoutme-api/internal/api/handler"
	"github.com/scoutme/scoutme-api/internal/api/metrics"
	"github.com/scoutme/scoutme-api/internal/core/ports"
	"github.com/scoutme/scoutme-api/internal/core/service"
	"github.com/scoutme/scoutme-api/internal/infrastructure/db/memory"
	mongostore "github.com/scoutme/scoutme-api/internal/infrastructure/db/mongo"
	pgstore "github.com/scoutme/scoutme-api/internal/infrastructure/db/postgres"
	redisdb "github.com/scoutme/scoutme-api/internal/infrastructure/db/redis"
	"github.com/scoutme/scoutme-api/internal/infrastructure/mail"
	"github.com/scoutme/scoutme-api/internal/infrastructure/queue"
	"github.com/scoutme/scoutme-api/internal/infrastructure/security"
	"github.com/scoutme/scoutme-api/internal/pkg/config"
	"github.com/scoutme/scoutme-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// store bundles the selected user repository with its readiness check and closer.
type store struct {
	repo    ports.UserRepository
	checker handler.Checker
	close   func(context.Context) error
}

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Env == config.EnvDevelopment,
		Service: "scoutme-api",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	codec, err := security.NewCodec(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := st.close(closeCtx); err != nil {
			log.Error().Err(err).Msg("closing user store")
		}
	}()
	log.Info().Str("driver", cfg.StoreDriver).Msg("user store ready")

	checkers := []handler.Checker{st.checker}

	// The per-IP limiter is optional: without Redis the API still serves.
	var limiter *redisdb.RateLimiter
	var rdb *goredis.Client
	if cfg.RateLimit.Enabled {
		rdb, err = redisdb.Connect(ctx, redisdb.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, per-IP rate limiting disabled")
		} else {
			defer rdb.Close()
			limiter = redisdb.NewRateLimiter(rdb)
			checkers = append(checkers, redisdb.NewChecker(rdb))
		}
	}

	notifier := newNotifier(cfg, log)

	dispatcher := queue.NewDispatcher(cfg.Mail.Workers, notifier, logger.Component("mail"))
	dispatcher.OnDelivery(metrics.ObserveMailDelivery)
	// Workers run on their own context so Stop can drain the queue after the
	// signal context is cancelled.
	dispatcher.Start(context.Background())

	authService := service.NewAuthService(service.Deps{
		Repo:     st.repo,
		Hasher:   security.NewBcryptHasher(cfg.JWT.BcryptCost),
		Tokens:   codec,
		Opaque:   security.NewHexTokenGenerator(),
		Notifier: notifier,
		Queue:    dispatcher,
		Log:      logger.Component("auth"),
	})

	deps := api.Deps{
		AuthService: metrics.InstrumentAuthService(authService),
		Tokens:      codec,
		Users:       st.repo,
		RateLimits: api.RateLimits{
			AuthMax:    cfg.RateLimit.AuthMax,
			RefreshMax: cfg.RateLimit.RefreshMax,
			Window:     cfg.RateLimit.Window,
		},
		TrustedProxies: cfg.RateLimit.TrustedProxies,
		Checkers:       checkers,
		Env:            cfg.Env,
		CORSOrigin:     cfg.CORSOrigin,
		SecureCookie:   cfg.IsProduction(),
		Log:            log,
	}
	if limiter != nil {
		deps.Limiter = limiter
	}
	e := api.NewRouter(deps)

	srvErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case err := <-srvErr:
		dispatcher.Stop()
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	dispatcher.Stop()
	log.Info().Msg("mail queue drained")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := pgstore.Connect(ctx, pgstore.Config{DSN: cfg.Postgres.DSN})
		if err != nil {
			return nil, err
		}
		repo := pgstore.NewUserRepository(db)
		return &store{
			repo:    repo,
			checker: pgstore.NewChecker(db),
			close: func(context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		}, nil

	case config.StoreMemory:
		repo := memory.NewUserRepository()
		return &store{repo: repo, checker: repo, close: func(context.Context) error { return nil }}, nil

	default:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		repo := mongostore.NewUserRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &store{
			repo:    repo,
			checker: mongostore.NewChecker(db),
			close:   client.Disconnect,
		}, nil
	}
}

func newNotifier(cfg *config.Config, log zerolog.Logger) ports.Notifier {
	links := mail.NewLinks(cfg.FrontendURL)
	if cfg.Mail.Driver == config.MailMailgun {
		return mail.NewMailgunNotifier(mail.MailgunConfig{
			Domain:   cfg.Mail.MailgunDomain,
			APIKey:   cfg.Mail.MailgunAPIKey,
			APIBase:  cfg.Mail.MailgunAPIBase,
			From:     cfg.Mail.From,
			FromName: cfg.Mail.FromName,
		}, links, logger.Component("mail"))
	}
	log.Warn().Msg("MAIL_DRIVER=log: emails are written to the log, not delivered")
	return mail.NewLogNotifier(links, logger.Component("mail"))
}
