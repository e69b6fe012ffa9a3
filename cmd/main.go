/**
 * @description
 * Entry point for the account lookup service. Wires the portal client, the
 * captcha pipeline, the credential encoder and the session orchestrator, then
 * serves the lookup endpoint and runs the keep-alive scheduler until a
 * termination signal arrives.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - github.com/redis/go-redis/v9: Optional shared rate limiting.
 * - github.com/google/uuid: Per-process device identity.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/nguyenkhoa0721/lookup-bank/internal/api"
	"github.com/nguyenkhoa0721/lookup-bank/internal/app"
	"github.com/nguyenkhoa0721/lookup-bank/internal/config"
	"github.com/nguyenkhoa0721/lookup-bank/pkg/captcha"
	"github.com/nguyenkhoa0721/lookup-bank/pkg/captcha/tesseract"
	"github.com/nguyenkhoa0721/lookup-bank/pkg/encoder"
	"github.com/nguyenkhoa0721/lookup-bank/pkg/mbclient"
	"github.com/nguyenkhoa0721/lookup-bank/pkg/rabbitmq"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	deviceID := strings.TrimSpace(cfg.MBBankDeviceID)
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	logger.Info("device identity ready", "device_id", deviceID)

	// Portal client and key material.
	authToken := cfg.MBBankAuthToken
	if authToken == "" {
		authToken = mbclient.DefaultAuthToken
	}
	portal := mbclient.NewClient(cfg.MBBankBaseURL, authToken,
		mbclient.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout()}),
		mbclient.WithKeyMaterialPath(cfg.MBBankKeyMaterialPath),
		mbclient.WithLogger(logger),
	)
	refs := mbclient.NewRefNoGenerator(cfg.MBBankUsername)

	// Captcha pipeline.
	preprocessor := captcha.NewDefaultPreprocessor(cfg.CaptchaScale)
	pageSegMode, err := tesseract.ParsePageSegMode(cfg.OCRPageSegMode)
	if err != nil {
		logger.Error("invalid OCR_PAGE_SEG_MODE", "component", "bootstrap", "error", err)
		os.Exit(1)
	}
	solver := captcha.NewSolver(tesseract.New(
		tesseract.WithLanguages(cfg.OCRLanguage),
		tesseract.WithPageSegMode(pageSegMode),
	))

	// Credential encoder.
	keys := encoder.NewKeyStore(portal)
	credEncoder := encoder.NewCredentialEncoder(encoder.NewScriptEncoder(cfg.MBBankEncoderEntry), keys, cfg.MBBankKeyVersion)
	verifyCtx, cancelVerify := context.WithTimeout(context.Background(), cfg.HTTPTimeout())
	verifyErr := credEncoder.Verify(verifyCtx)
	cancelVerify()
	if verifyErr != nil {
		logger.Error("encoder key material unusable", "component", "bootstrap",
			"path", cfg.MBBankKeyMaterialPath, "error", verifyErr)
		os.Exit(1)
	}

	auth := app.NewAuthenticator(portal, preprocessor, solver, credEncoder, refs, app.AuthenticatorConfig{
		Credentials: app.Credentials{Username: cfg.MBBankUsername, Password: cfg.MBBankPassword},
		DeviceID:    deviceID,
		MaxAttempts: cfg.LoginMaxAttempts,
	}, logger)

	// Session events are optional; fall back to a no-op publisher.
	var publisher rabbitmq.Publisher = &rabbitmq.EventProducerFallback{Logger: logger}
	if strings.TrimSpace(cfg.RabbitMQURL) != "" {
		producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("rabbitmq unavailable; session events disabled", "component", "bootstrap", "error", err)
		} else {
			publisher = producer
			logger.Info("rabbitmq connected", "component", "bootstrap")
		}
	}
	defer publisher.Close()

	service := app.NewBankAccountService(portal, auth, refs, publisher, app.ServiceConfig{
		DeviceID:       deviceID,
		SelfBankBin:    cfg.MBBankSelfBin,
		DebitAccount:   cfg.MBBankDebitAccount,
		LoginTimeout:   cfg.LoginTimeout(),
		EventsExchange: cfg.EventsExchange,
	}, logger)

	var limiter api.RateLimiter
	if cfg.LookupRateLimitPerMin > 0 {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			logger.Warn("redis url missing; lookup rate limiting disabled", "component", "bootstrap", "env", "REDIS_URL")
		} else if redisOptions, parseErr := redis.ParseURL(cfg.RedisURL); parseErr != nil {
			logger.Warn("redis url parse failed; lookup rate limiting disabled", "component", "bootstrap", "error", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			pingErr := redisClient.Ping(pingCtx).Err()
			cancelPing()
			if pingErr != nil {
				logger.Warn("redis ping failed; lookup rate limiting disabled", "component", "bootstrap", "error", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				limiter = api.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix, cfg.LookupRateLimitPerMin, time.Minute)
				logger.Info("redis connected", "component", "bootstrap")
			}
		}
	}

	keepAlive := app.NewKeepAlive(service, cfg.KeepAliveInterval(), logger)
	keepAlive.Start()

	router := api.NewRouter(api.NewLookupHandler(service, logger), api.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins(),
		RateLimiter:    limiter,
		RequestTimeout: cfg.LoginTimeout() + cfg.HTTPTimeout(),
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "component", "http", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped unexpectedly", "component", "http", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown started")

	<-keepAlive.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "component", "http", "error", err)
	}
	logger.Info("shutdown complete")
}
