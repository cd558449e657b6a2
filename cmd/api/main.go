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

	"pina-onboarding/internal/config"
	"pina-onboarding/internal/db"
	"pina-onboarding/internal/email"
	"pina-onboarding/internal/evidence"
	"pina-onboarding/internal/federation"
	apihttp "pina-onboarding/internal/http"
	"pina-onboarding/internal/kyc"
	"pina-onboarding/internal/repository"
	"pina-onboarding/internal/service"
	"pina-onboarding/internal/telemetry"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	serviceName     = "pina-onboarding"
	shutdownTimeout = 15 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()
	logger = logger.With(zap.String("env", cfg.AppEnv), zap.String("version", cfg.AppVersion))

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.AppVersion, cfg.OTelEndpoint)
	if err != nil {
		logger.Warn("otel setup failed", zap.Error(err))
	}
	defer func() {
		ctxFlush, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctxFlush)
	}()

	var creators repository.CreatorRepository
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory creator store; data is lost on restart")
		creators = repository.NewMemoryCreatorRepository()
	default:
		pool, err := db.NewPool(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if cfg.RunMigrations {
			if err := db.RunMigrations(ctx, pool); err != nil {
				logger.Fatal("db migrations", zap.Error(err))
			}
		}
		creators = repository.NewPgCreatorRepository(pool)
	}

	var evidenceStore *evidence.S3Store
	if cfg.S3Enabled() {
		evidenceStore, err = evidence.NewS3Store(ctx, evidence.Config{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			logger.Warn("s3 evidence store init failed", zap.Error(err))
			evidenceStore = nil
		}
	}

	var provider kyc.Provider
	switch cfg.KYCProvider {
	case config.KYCProviderHTTP:
		var linker kyc.EvidenceLinker
		if evidenceStore != nil {
			linker = evidenceStore
		}
		provider = kyc.NewHTTPProvider(cfg.KYCBaseURL, cfg.KYCAPIKey, linker, logger)
	default:
		provider = kyc.NewRuleProvider(cfg.KYCRuleDelay)
	}

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	loginLimiter := service.NewLoginRateLimiter(cfg.LoginRateWindow, cfg.LoginRateMax)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory login limiter", zap.Error(err))
		} else {
			loginLimiter = service.NewRedisLoginRateLimiter(redisClient, cfg.LoginRateWindow, cfg.LoginRateMax)
		}
		cancel()
	}

	var googleVerifier apihttp.IDTokenVerifier
	if cfg.GoogleClientID != "" {
		verifier, err := federation.NewGoogleVerifier(ctx, cfg.GoogleJWKSURL, cfg.GoogleClientID, logger)
		if err != nil {
			logger.Warn("google verifier init failed", zap.Error(err))
		} else {
			defer verifier.Close()
			googleVerifier = verifier
		}
	}

	hasher := service.NewBcryptHasher(cfg.BcryptSaltRounds)
	signer := service.NewJWTSigner(cfg.JWTSecret, cfg.JWTIssuer)
	tokenSvc := service.NewTokenService(logger, signer, creators, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	registrationSvc := service.NewRegistrationService(logger, creators, provider, hasher, emailSender)
	identitySvc := service.NewIdentityService(logger, creators, hasher, tokenSvc, loginLimiter)

	var uploads apihttp.UploadIssuer
	if evidenceStore != nil {
		uploads = evidenceStore
	}
	router := apihttp.NewRouter(logger, tokenSvc,
		apihttp.NewRegistrationHandler(logger, registrationSvc),
		apihttp.NewAuthHandler(logger, identitySvc, tokenSvc, googleVerifier),
		apihttp.NewEvidenceHandler(logger, uploads),
		apihttp.NewHealthHandler(logger, creators, cfg.AppEnv, cfg.AppVersion),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := registrationSvc.Drain(ctxShutdown); err != nil {
		logger.Warn("pending verifications not drained", zap.Error(err))
	}
}
