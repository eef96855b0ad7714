package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/taobei/auth/internal/config"
	"github.com/taobei/auth/internal/handlers"
	"github.com/taobei/auth/internal/middleware"
	"github.com/taobei/auth/internal/ratelimit"
	"github.com/taobei/auth/internal/repository"
	"github.com/taobei/auth/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	// A missing .env is fine; the environment may already be populated.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.WithError(err).Warn("Failed to read .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		stop()
		logger.WithError(err).Fatal("Server stopped with error")
	}
}

// run serves until ctx is cancelled. Setup failures are returned rather
// than logged fatally so that resources opened earlier are closed.
func run(ctx context.Context, logger *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
	}

	users, codes, closeStore, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer closeStore()

	limiter, closeLimiter, err := initLimiter(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize send rate limiter: %w", err)
	}
	defer closeLimiter()

	tokenService, err := service.NewTokenService(&cfg.JWT, logger)
	if err != nil {
		return fmt.Errorf("initialize token service: %w", err)
	}

	authService := service.NewAuthService(
		users,
		codes,
		limiter,
		service.NewLogSender(logger),
		tokenService,
		cfg.Auth.BcryptCost,
		logger,
	)

	router := handlers.NewRouter(
		handlers.NewAuthHandlers(authService, logger),
		middleware.NewAuthMiddleware(tokenService, logger),
		middleware.NewIPRateLimiter(cfg.RateLimit.IPRequests, cfg.RateLimit.IPWindow),
		&cfg.Server,
		logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

func initStorage(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (service.UserStore, service.CodeStore, func(), error) {
	switch cfg.Storage.Driver {
	case config.StorageDynamoDB:
		client, err := initDynamoDB(ctx, cfg, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		users := repository.NewDynamoUserRepository(client, cfg.DynamoDB.TableName, logger)
		codes := repository.NewDynamoCodeRepository(client, cfg.DynamoDB.TableName, cfg.Code.Expiry, logger)
		return users, codes, func() {}, nil
	default:
		store, err := repository.OpenSQLStore(ctx, cfg.Storage.Driver, cfg.Storage.DSN, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		closeStore := func() {
			if err := store.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close SQL store")
				return
			}
			logger.Info("SQL store closed")
		}
		return repository.NewSQLUserRepository(store), repository.NewSQLCodeRepository(store, cfg.Code.Expiry), closeStore, nil
	}
}

func initDynamoDB(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*dynamodb.Client, error) {
	var awsCfg aws.Config
	var err error

	if cfg.DynamoDB.Endpoint != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.DynamoDB.Region),
			awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{
						URL:           cfg.DynamoDB.Endpoint,
						SigningRegion: cfg.DynamoDB.Region,
					}, nil
				})),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.DynamoDB.Region))
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg)
	logger.WithField("table", cfg.DynamoDB.TableName).Info("DynamoDB client initialized")
	return client, nil
}

func initLimiter(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (ratelimit.Limiter, func(), error) {
	if cfg.RateLimit.Backend != config.LimiterRedis {
		return ratelimit.NewMemory(cfg.RateLimit.SendInterval), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Endpoint,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.WithField("endpoint", cfg.Redis.Endpoint).Info("Redis client initialized")
	closeClient := func() {
		if err := client.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close redis client")
		}
	}
	return ratelimit.NewRedis(client, "send_code:", cfg.RateLimit.SendInterval), closeClient, nil
}
