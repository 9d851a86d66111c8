package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/feelkraft/comic-api/internal/adapter/repo"
	"github.com/feelkraft/comic-api/internal/cache"
	"github.com/feelkraft/comic-api/internal/cleanup"
	"github.com/feelkraft/comic-api/internal/generation"
	"github.com/feelkraft/comic-api/internal/http/handlers"
	"github.com/feelkraft/comic-api/internal/http/httpapi"
	"github.com/feelkraft/comic-api/internal/infra"
	"github.com/feelkraft/comic-api/internal/infra/credentials"
	"github.com/feelkraft/comic-api/internal/metrics"
	"github.com/feelkraft/comic-api/internal/middleware"
	"github.com/feelkraft/comic-api/internal/migrations"
	"github.com/feelkraft/comic-api/internal/payment"
	"github.com/feelkraft/comic-api/internal/providers/groq"
	"github.com/feelkraft/comic-api/internal/providers/nanobanana"
	"github.com/feelkraft/comic-api/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if err := migrations.Up(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	creds := credentials.NewStore(dbpool)
	nanoKey := resolveKey(ctx, cfg.NanoBananaAPIKey, creds.NanoBananaAPIKey, &logger, "nanobanana")
	groqKey := resolveKey(ctx, cfg.GroqAPIKey, creds.GroqAPIKey, &logger, "groq")

	callbackURL := ""
	if cfg.CallbackBaseURL != "" {
		callbackURL = strings.TrimRight(cfg.CallbackBaseURL, "/") + "/api/callback"
	}
	taskClient, err := nanobanana.NewClient(nanobanana.Options{
		APIKey:      nanoKey,
		BaseURL:     cfg.NanoBananaBaseURL,
		Model:       cfg.NanoBananaModel,
		CallbackURL: callbackURL,
		Logger:      &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("nanobanana client init failed")
	}
	if !taskClient.HasCredentials() {
		logger.Warn().Msg("nanobanana api key not configured, task submission will fail")
	}

	refiner, err := groq.NewClient(groq.Options{
		APIKey:   groqKey,
		Model:    cfg.GroqModel,
		BaseURL:  cfg.GroqBaseURL,
		Fallback: groq.NewStaticRefiner(),
		OnFallback: func(reason string, err error) {
			logger.Warn().Err(err).Str("reason", reason).Msg("groq fallback engaged")
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("groq client init failed")
	}

	store, err := buildStore(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("object store init failed")
	}

	redisCache, err := cache.New(cfg.RedisURL, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis init failed")
	}
	defer redisCache.Close()

	gateway, err := payment.NewGateway(payment.GatewayOptions{
		KeyID:     cfg.RazorpayKeyID,
		KeySecret: cfg.RazorpayKeySecret,
		BaseURL:   cfg.RazorpayBaseURL,
		Logger:    &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("payment gateway init failed")
	}
	tokens, err := payment.NewTokenIssuer(cfg.PaymentJWTSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment token issuer init failed")
	}

	jobs := repo.NewJobRepository(dbpool)
	logs := repo.NewTaskLogRepository(dbpool)
	users := repo.NewUserRepository(dbpool)
	payments := repo.NewPaymentRepository(dbpool)

	prom := metrics.New()

	svc, err := generation.NewService(generation.Options{
		Jobs:         jobs,
		Logs:         logs,
		Tasks:        taskClient,
		Store:        store,
		Logger:       &logger,
		Metrics:      prom,
		PollAttempts: cfg.PollAttempts,
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("generation service init failed")
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	sweeper := cleanup.NewSweeper(cleanup.Options{
		Jobs:      jobs,
		Store:     store,
		Retention: cfg.CleanupRetention,
		Interval:  cfg.CleanupInterval,
		Logger:    &logger,
	})
	go sweeper.Run(sweepCtx)

	app := &handlers.App{
		Logger:        &logger,
		Users:         users,
		Jobs:          jobs,
		Logs:          logs,
		Payments:      payments,
		Generator:     svc,
		Refiner:       refiner,
		Store:         store,
		Cache:         redisCache,
		Gateway:       gateway,
		Tokens:        tokens,
		Metrics:       prom,
		RazorpayKeyID: cfg.RazorpayKeyID,
	}

	auth := middleware.NewAuthenticator(cfg.AuthJWTSecret, users, &logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		AllowedOrigins:  strings.Split(cfg.AllowedOrigins, ","),
		RateLimitPerMin: cfg.RateLimitPerMin,
		Auth:            auth.Require,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	svc.Wait()
	logger.Info().Msg("server stopped")
}

func resolveKey(ctx context.Context, envKey string, lookup func(context.Context) (string, error), logger *infra.Logger, provider string) string {
	if strings.TrimSpace(envKey) != "" {
		return envKey
	}
	lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	key, err := lookup(lookupCtx)
	if err != nil {
		logger.Warn().Err(err).Str("provider", provider).Msg("api key lookup failed")
		return ""
	}
	return key
}

func buildStore(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (storage.ObjectStore, error) {
	if cfg.StorageDriver == "filesystem" {
		return storage.NewFileStore(cfg.StorageBasePath, cfg.StorageBaseURL)
	}
	store, err := storage.NewMinioStore(storage.MinioOptions{
		Endpoint:      cfg.MinioEndpoint,
		AccessKey:     cfg.MinioAccessKey,
		SecretKey:     cfg.MinioSecretKey,
		Bucket:        cfg.MinioBucket,
		PublicBaseURL: cfg.MinioPublicBaseURL,
		UseSSL:        cfg.MinioUseSSL,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	ensureCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := store.EnsureBucket(ensureCtx); err != nil {
		return nil, err
	}
	return store, nil
}
