/**
 * @description
 * This is the main entry point for the merchant dashboard BFF.
 * It initializes and wires together all the components of the application,
 * including configuration, the token store, the gateway client, the session
 * store, audit events, the revalidation scheduler and the HTTP router.
 * Finally, it starts the HTTP server to listen for incoming requests.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files during local development.
 */
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/joelwasike/globpay-crypto-dash/internal/api"
	"github.com/joelwasike/globpay-crypto-dash/internal/app"
	"github.com/joelwasike/globpay-crypto-dash/internal/config"
	"github.com/joelwasike/globpay-crypto-dash/internal/logging"
	"github.com/joelwasike/globpay-crypto-dash/internal/metrics"
	"github.com/joelwasike/globpay-crypto-dash/internal/navigation"
	"github.com/joelwasike/globpay-crypto-dash/internal/session"
	"github.com/joelwasike/globpay-crypto-dash/internal/tokenstore"
	"github.com/joelwasike/globpay-crypto-dash/pkg/gatewayclient"
	"github.com/joelwasike/globpay-crypto-dash/pkg/rabbitmq"
)

const serviceName = "globpay-dashboard"

func main() {
	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env file: %v\n", err)
	}

	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	logging.Init(serviceName, cfg.LogLevel, cfg.LogFormat)
	logger := logging.Component("bootstrap")
	logger.Info().Str("port", cfg.ServerPort).Str("gateway", gatewayclient.ResolveBaseURL(cfg.GatewayAPIURL)).Msg("starting dashboard")

	m := metrics.New()

	// Persisted API key.
	tokens, closeTokens := newTokenStore(cfg, logger)
	defer closeTokens()

	// Audit events. The dashboard keeps working without RabbitMQ.
	var publisher rabbitmq.Publisher = &rabbitmq.EventProducerFallback{Logger: logging.Component("rabbitmq_producer")}
	if cfg.RabbitMQURL == "" {
		logger.Info().Msg("RABBITMQ_URL not set; audit events disabled")
	} else if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.EventExchange); err != nil {
		logger.Warn().Err(err).Msg("rabbitmq producer unavailable; using fallback")
	} else {
		defer producer.Close()
		publisher = producer
		logger.Info().Str("exchange", cfg.EventExchange).Msg("rabbitmq producer connected")
	}

	client := gatewayclient.NewClient(cfg.GatewayAPIURL, tokens,
		gatewayclient.WithTimeout(cfg.GatewayTimeout()),
		gatewayclient.WithObserver(m),
		gatewayclient.WithLogger(logging.Component("gateway_client")),
	)

	sessions := session.NewStore(client, tokens,
		session.WithPublisher(publisher),
		session.WithRecorder(m),
		session.WithLogger(logging.Component("session")),
	)

	// Any 401 from the gateway ends the session and sends the user to the login screen.
	bus := navigation.NewBus()
	bus.Subscribe(func(target string) {
		logger := logging.Component("navigation")
		logger.Info().Str("target", target).Msg("redirect requested")
	})
	client.SetUnauthorizedHandler(func(ctx context.Context, path string) {
		sessions.Invalidate(ctx)
		bus.Redirect(navigation.LoginPath)
	})

	restoreCtx, cancelRestore := context.WithTimeout(context.Background(), 30*time.Second)
	state := sessions.Restore(restoreCtx)
	cancelRestore()
	logger.Info().Str("state", string(state)).Msg("session restored from token store")

	views := app.NewService(client, sessions,
		app.WithPublisher(publisher),
		app.WithLocation(cfg.Location()),
		app.WithLogger(logging.Component("views")),
	)

	scheduler := app.NewScheduler(sessions, cfg.SessionRevalidateSchedule, logging.Component("scheduler"))
	if err := scheduler.Start(); err != nil {
		logger.Warn().Err(err).Msg("session revalidation not scheduled")
	}

	handler := api.NewHandler(views, sessions, bus, logging.Component("http"))
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins(),
		Metrics:        m,
		Logger:         logging.Component("http"),
	})

	// Configure and start the HTTP server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().Str("port", cfg.ServerPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for an OS signal
	<-sigCh
	logger.Info().Msg("shutdown signal received, gracefully shutting down")

	<-scheduler.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	logger.Info().Msg("server stopped")
}

// newTokenStore builds the configured token store. A Redis store that cannot
// be reached at startup degrades to the file store.
func newTokenStore(cfg config.Config, logger zerolog.Logger) (gatewayclient.TokenStore, func()) {
	noop := func() {}

	switch cfg.TokenStore {
	case config.TokenStoreMemory:
		logger.Warn().Msg("using in-memory token store; the session will not survive a restart")
		return tokenstore.NewMemory(), noop

	case config.TokenStoreRedis:
		redisOptions, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis url parse failed; using file token store")
			break
		}
		redisClient := redis.NewClient(redisOptions)
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelPing()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis ping failed; using file token store")
			redisClient.Close()
			break
		}
		logger.Info().Str("key", cfg.TokenRedisKey).Msg("redis token store connected")
		return tokenstore.NewRedis(redisClient, cfg.TokenRedisKey), func() { redisClient.Close() }
	}

	logger.Info().Str("path", cfg.TokenFile).Msg("using file token store")
	return tokenstore.NewFile(cfg.TokenFile), noop
}
