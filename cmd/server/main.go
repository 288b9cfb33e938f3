package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/pixeldesk/pixeldesk/internal/api"
	"github.com/pixeldesk/pixeldesk/internal/cache"
	"github.com/pixeldesk/pixeldesk/internal/config"
	"github.com/pixeldesk/pixeldesk/internal/encode"
	"github.com/pixeldesk/pixeldesk/internal/ratelimit"
	"github.com/pixeldesk/pixeldesk/internal/store"
	"github.com/pixeldesk/pixeldesk/internal/telemetry"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmsgprefix)

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Service:  "pixeldesk",
		Exporter: cfg.Telemetry.Exporter,
		Endpoint: cfg.Telemetry.OTLPEndpoint,
		Insecure: cfg.Telemetry.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Printf("tracing shutdown error: %v", err)
		}
	}()

	if err := encode.Startup(); err != nil {
		logger.Fatalf("encoder startup failed: %v", err)
	}
	defer encode.Shutdown()

	encoder, err := encode.New()
	if err != nil {
		logger.Fatalf("encoder init failed: %v", err)
	}

	var limiter api.RateLimiter
	if cfg.RateLimit.Enabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Printf("redis client close error: %v", err)
			}
		}()

		limiter, err = ratelimit.NewRedisTokenBucket(redisClient, cfg.RateLimit.PerMinute, "pixeldesk:ratelimit")
		if err != nil {
			logger.Fatalf("rate limiter init failed: %v", err)
		}
		logger.Printf("rate limiting enabled per_minute=%d", cfg.RateLimit.PerMinute)
	}

	app := api.NewServer(api.Options{
		Logger:                logger,
		Images:                store.NewMemoryImageStore(),
		Decodes:               cache.New(cfg.Cache.MaxEntries),
		Encoder:               encoder,
		MaxUploadBytes:        cfg.Server.MaxUploadBytes,
		RateLimiter:           limiter,
		RateLimitUserIDHeader: cfg.RateLimit.UserHeader,
		Tracer:                otel.Tracer("pixeldesk/api"),
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}
