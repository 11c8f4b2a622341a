package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/sesto-dev/e2e-type-safety-templates/internal/adapter/cache"
	oauthadapter "github.com/sesto-dev/e2e-type-safety-templates/internal/adapter/oauth"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/config"
	httptransport "github.com/sesto-dev/e2e-type-safety-templates/internal/http"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/http/handler"
	httpmiddleware "github.com/sesto-dev/e2e-type-safety-templates/internal/http/middleware"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/http/session"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/mail"
	apimiddleware "github.com/sesto-dev/e2e-type-safety-templates/internal/middleware"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/repository"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/server"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/service"
	oauthservice "github.com/sesto-dev/e2e-type-safety-templates/internal/service/oauth"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/telemetry"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newRedisClient,
			newUserRepository,
			newRevocationStore,
			newHandshakeStore,
			newTokenCodec,
			newMailer,
			newGoogleProvider,
			newRateLimiter,
			session.NewTransport,
			service.NewOTPService,
			service.NewCredentialService,
			oauthservice.NewBroker,
			newAuthMiddleware,
			handler.NewAuthHandler,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, runMigrations, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Debug() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newUserRepository(pool *pgxpool.Pool, node *snowflake.Node) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool, node)
}

func newRevocationStore(client redis.UniversalClient) repository.RevocationStore {
	return cacheadapter.NewRedisRevocationStore(client)
}

func newHandshakeStore(client redis.UniversalClient) repository.HandshakeStore {
	return cacheadapter.NewRedisHandshakeStore(client)
}

func newTokenCodec(cfg config.Config) (*token.Codec, error) {
	return token.NewCodec(cfg.SigningKey)
}

func newMailer(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) mail.Dispatcher {
	dispatcher := mail.NewSMTPDispatcher(cfg.SMTPAddr, cfg.MailFrom, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return dispatcher.Close(ctx)
		},
	})
	return dispatcher
}

func newGoogleProvider(cfg config.Config) (oauthadapter.Provider, error) {
	if !cfg.OAuthEnabled() {
		// OTP-only deployment; the router never mounts the /google routes.
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return oauthadapter.NewGoogleProvider(ctx, cfg.GoogleClientID, cfg.GoogleSecret, cfg.GoogleRedirectURL)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newAuthMiddleware(credentials *service.CredentialService, sessions *session.Transport) *httpmiddleware.Auth {
	return httpmiddleware.NewAuth(credentials, sessions)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			logger.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func runMigrations(pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return repository.Migrate(ctx, pool)
}

func useTelemetry(*telemetry.Provider) {}
