package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_pos/internal/auth"
	"github.com/fjod/go_pos/internal/backend"
	"github.com/fjod/go_pos/internal/catalog"
	"github.com/fjod/go_pos/internal/clock"
	"github.com/fjod/go_pos/internal/commit"
	"github.com/fjod/go_pos/internal/config"
	"github.com/fjod/go_pos/internal/domain"
	h "github.com/fjod/go_pos/internal/http"
	"github.com/fjod/go_pos/internal/logger"
	"github.com/fjod/go_pos/internal/payment"
	"github.com/fjod/go_pos/internal/receipt"
	"github.com/fjod/go_pos/internal/terminal"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx := context.Background()
	sched := clock.Real{}
	opts := backend.Options{
		Timeout:   cfg.RequestTimeout,
		RateLimit: cfg.BackendRateLimit,
		Burst:     cfg.BackendBurst,
		Logger:    log,
	}

	var cache catalog.QueryCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("redis connection failed", zap.Error(err))
		}
		log.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))
		cache = catalog.NewRedisCache(redisClient, cfg.CatalogTTL)
	}

	products := catalog.NewService(
		backend.NewCatalogClient(cfg.CatalogURL, opts),
		cache,
		catalog.NewSnapshot(),
		sched,
		cfg.SearchDebounce,
		log,
	)
	defer products.Close()
	if _, err := products.Search(ctx, catalog.Filters{}); err != nil {
		log.Warn("initial catalog load failed", zap.Error(err))
	}

	policy := payment.PollPolicy{
		InitialDelay: cfg.PollInitialDelay,
		Interval:     cfg.PollInterval,
		MaxAttempts:  cfg.PollMaxAttempts,
	}
	phone := payment.PhoneFormat{
		CountryCode:      cfg.PhoneCountryCode,
		SubscriberDigits: cfg.PhoneSubscriberDigits,
		Prefixes:         cfg.PhonePrefixes,
	}
	payments := payment.NewOrchestrator(backend.NewGatewayClient(cfg.GatewayURL, opts), sched, policy, phone, log)

	var printer commit.ReceiptPrinter
	switch cfg.ReceiptMode {
	case "http":
		printer = backend.NewPrinterClient(cfg.PrinterURL, opts)
	case "kafka":
		hostname, _ := os.Hostname()
		publisher := receipt.NewPublisher(cfg.ReceiptTopic, hostname, cfg.KafkaBrokers...)
		defer publisher.Close()
		printer = publisher
	}
	committer := commit.NewCommitter(backend.NewLedgerClient(cfg.LedgerURL, opts), printer, cfg.RequestTimeout, log)

	authority := auth.NewAuthority([]byte(cfg.JWTSecret), nil)
	term := terminal.New(authority, products, payments, committer, sched, log)

	handler := h.NewTerminalHandler(term, cfg.RequestTimeout, log)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.NewRouter(handler, log, cfg.RequestTimeout+time.Second),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("pos terminal starting", zap.String("port", cfg.HTTPPort), zap.String("receipt_mode", cfg.ReceiptMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if s, ok := term.Payment(); ok {
		switch s.Status {
		case domain.PaymentStatusPending, domain.PaymentStatusSuccess:
			log.Warn("exiting with an unfinished payment; verify it out-of-band",
				zap.String("session_id", s.ID),
				zap.String("status", s.Status.String()),
				zap.String("correlation_id", s.CorrelationID))
		}
	}

	log.Info("server exited")
}
