package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_pos/internal/config"
	"github.com/fjod/go_pos/internal/logger"
	"github.com/fjod/go_pos/internal/payment"
	"github.com/fjod/go_pos/internal/receipt"
	"github.com/fjod/go_pos/internal/simulator"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadSimulator()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)
	var wg sync.WaitGroup

	store, err := simulator.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer store.Close()

	if err := store.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	log.Info("database migrations completed", zap.String("db", cfg.DBPath))

	var status simulator.StatusSource = simulator.RandomStatus{}
	if cfg.FixedOutcome != "" {
		status = simulator.FixedStatus{Status: payment.GatewayStatus(cfg.FixedOutcome), Reason: "simulated " + cfg.FixedOutcome}
	}
	mm := simulator.NewMobileMoney(cfg.PendingChecks, status)

	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	if cfg.ConsumeReceipts {
		receiptConsumer := receipt.NewConsumer(cfg.ReceiptTopic, "backoffice-sim", store.PrintFromKafka, log, cfg.KafkaBrokers...)
		defer receiptConsumer.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			receiptConsumer.Run(consumerCtx)
		}()
		log.Info("receipt consumer started", zap.String("topic", cfg.ReceiptTopic))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      simulator.NewServer(store, mm, log).Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("back office simulator starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down simulator...")
	consumerCancel()
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("simulator exited")
}
