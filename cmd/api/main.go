package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tribe-otp/internal/application/otp"
	"github.com/tribe-otp/internal/config"
	"github.com/tribe-otp/internal/infrastructure/dynamo"
	"github.com/tribe-otp/internal/infrastructure/memory"
	redisinfra "github.com/tribe-otp/internal/infrastructure/redis"
	"github.com/tribe-otp/internal/infrastructure/smtp"
	"github.com/tribe-otp/internal/infrastructure/sns"
	transporthttp "github.com/tribe-otp/internal/transport/http"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	policy := otp.Config{
		TTL:         cfg.OTP.TTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
		CodeLength:  cfg.OTP.CodeLength,
		OpTimeout:   cfg.OTP.StoreTimeout,
		HashCost:    cfg.OTP.HashCost,
	}
	if err := policy.Validate(); err != nil {
		log.Fatalf("invalid OTP policy: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, ready, closeRepo, err := newCodeRepo(ctx, cfg)
	if err != nil {
		log.Fatalf("code store: %v", err)
	}
	defer closeRepo()

	store := otp.NewStore(repo, policy)

	// SNS SMS sender (optional, falls back to e-mail only).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(ctx, cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	deps := &transporthttp.Deps{
		CodeStore: store,
		Mailer:    smtp.NewMailer(cfg),
		SMSSender: smsSender,
		CodeTTL:   cfg.OTP.TTL,
		Ready:     ready,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(ctx, cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Server starting on :%s (env=%s, store=%s)", cfg.AppPort, cfg.AppEnv, cfg.OTP.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return store.RunSweeper(gctx, cfg.OTP.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}

// newCodeRepo builds the configured persistence backend along with its
// readiness check and a close func.
func newCodeRepo(ctx context.Context, cfg *config.Config) (otp.Repository, func(context.Context) error, func(), error) {
	switch cfg.OTP.Backend {
	case config.BackendDynamo:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		// Creates the table and enables TTL if they don't exist.
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		return dynamo.NewCodeRepo(client, cfg.DynamoTables.OneTimeCodes), nil, func() {}, nil
	case config.BackendRedis:
		client := redisinfra.NewClient(cfg)
		ready := func(ctx context.Context) error { return client.Ping(ctx).Err() }
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.Printf("WARN: closing redis client: %v", err)
			}
		}
		return redisinfra.NewCodeRepo(client, cfg.RedisNamespace), ready, closeFn, nil
	case config.BackendMemory:
		log.Println("WARN: using in-memory code store; codes are lost on restart")
		return memory.NewCodeRepo(), nil, func() {}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown OTP_STORE_BACKEND %q", cfg.OTP.Backend)
	}
}
