package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chat-relay/internal/config"
	"chat-relay/internal/db"
	"chat-relay/internal/directory"
	"chat-relay/internal/logging"
	"chat-relay/internal/observability"
	"chat-relay/internal/rabbitmq"
	"chat-relay/internal/repositories"
	"chat-relay/internal/telemetry"
	"chat-relay/internal/ws"
)

const serviceName = "chat-relay"

func main() {
	cfg := config.Load()

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Dev: cfg.LogDev})
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}

	var database *sqlx.DB
	if cfg.AccountStore == "postgres" || cfg.MessageStore == "postgres" {
		database, err = db.Connect(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("failed to connect to db", zap.Error(err))
		}
		defer database.Close()
	}

	accounts := newAccountRepo(cfg, database)
	messages, closeMessages := newMessageRepo(ctx, cfg, database, logger)
	defer closeMessages()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = db.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	logger.Info("event publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)),
	)
	auditEmitter := telemetry.NewAuditEmitter(publisher, "audit.chat", serviceName, cfg.Environment, logger)

	dir := directory.NewService(accounts, logger)
	relay := ws.NewRouter(messages, logger, ws.WithMailboxCapacity(cfg.MailboxCapacity))

	engine := newEngine(cfg, engineDeps{
		logger:   logger,
		dir:      dir,
		messages: messages,
		relay:    relay,
		redis:    redisClient,
		audit:    auditEmitter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("account_store", cfg.AccountStore),
			zap.String("message_store", cfg.MessageStore),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	relay.Wait()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

func newAccountRepo(cfg config.Config, database *sqlx.DB) repositories.AccountRepository {
	if cfg.AccountStore == "memory" {
		return repositories.NewMemoryAccountRepo()
	}
	return repositories.NewAccountRepo(database)
}

func newMessageRepo(ctx context.Context, cfg config.Config, database *sqlx.DB, logger *zap.Logger) (repositories.MessageRepository, func()) {
	switch cfg.MessageStore {
	case "memory":
		return repositories.NewMemoryMessageRepo(), func() {}
	case "mongo":
		client, err := db.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			logger.Fatal("failed to connect to mongo", zap.Error(err))
		}
		repo := repositories.NewMongoMessageRepo(client.Database(cfg.MongoDatabase).Collection("messages"))
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Warn("mongo index setup failed", zap.Error(err))
		}
		return repo, func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}
	default:
		return repositories.NewMessageRepo(database), func() {}
	}
}
