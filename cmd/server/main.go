package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/config"
	handlers "github.com/Mahaan-Amr/hs6tools-sub003/internal/controllers/http"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/infra"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/infra/database"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/infra/kafka"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/infra/rabbitmq"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/infra/redisstore"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/middlewares"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/repository/gormrepo"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type eventBroker interface {
	infra.EventPublisherInterface
	Close() error
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	zerolog.DefaultContextLogger = &log.Logger
}

func newBroker(cfg *config.Config) (eventBroker, error) {
	switch cfg.EventBroker {
	case "rabbitmq":
		return rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.EventExchange)
	case "kafka":
		return kafka.NewPublisher(cfg.KafkaBrokerList(), cfg.KafkaTopic), nil
	}
	return infra.NopPublisher{}, nil
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("config: load")
	}
	setupLogger(cfg)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("db: connect")
	}
	store := gormrepo.NewStore(db, gormrepo.WithRetry(3, database.IsRetryable))

	broker, err := newBroker(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("broker", cfg.EventBroker).Msg("failed to init publisher")
	}

	if cfg.Gateway.MerchantID == "" {
		log.Warn().Msg("ZARINPAL_MERCHANT_ID is not set, payment requests will fail")
	}
	gateway := infra.NewZarinpalClient(infra.ZarinpalConfig{
		MerchantID: cfg.Gateway.MerchantID,
		Sandbox:    cfg.Gateway.Sandbox,
		BaseURL:    cfg.Gateway.BaseURL,
		Timeout:    cfg.Gateway.Timeout,
	})

	if cfg.SMS.APIKey == "" {
		log.Warn().Msg("SMS_API_KEY is not set, customer notifications will not be delivered")
	}
	sms := infra.NewSMSClient(cfg.SMS.BaseURL, cfg.SMS.APIKey, cfg.SMS.Sender, cfg.SMS.Timeout)
	notifier := services.NewNotificationDispatcher(sms, cfg.SMS)

	orders := services.NewOrderService(store, broker, notifier, cfg.Order)
	payments := services.NewPaymentService(store, gateway, broker, notifier, cfg.Gateway)
	reconciler := services.NewExpiryReconciler(store, broker, notifier, cfg.Expiry)

	if cfg.RedisAddr != "" {
		redisClient := redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer redisClient.Close()
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis is not reachable yet")
		}
		orders.SetIdempotencyStore(redisstore.NewIdempotencyStore(redisClient))
		reconciler.SetLocker(redisstore.NewLocker(redisClient))
	} else {
		log.Warn().Msg("REDIS_ADDR is not set, idempotency keys are ignored and expiry runs are not exclusive across replicas")
	}

	if cfg.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is not set, every bearer token will be rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	reconciler.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(
		middlewares.RequestLogger(&log.Logger),
		middlewares.Recover(&log.Logger),
		middlewares.PrometheusMiddleware(),
	)
	handlers.NewHandler(orders, payments, reconciler, handlers.Options{
		JWTSecret:      cfg.JWTSecret,
		CronSecret:     cfg.CronSecret,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		ResultURL:      cfg.Gateway.ResultURL,
	}).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("starting order service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server run")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := notifier.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("notifications still queued at shutdown were dropped")
	}
	if err := broker.Close(); err != nil {
		log.Error().Err(err).Msg("close publisher")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
