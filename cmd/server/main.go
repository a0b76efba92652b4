package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fiscal-service/config"
	"fiscal-service/internal/classifier"
	"fiscal-service/internal/events"
	"fiscal-service/internal/handler"
	"fiscal-service/internal/locker"
	"fiscal-service/internal/product"
	"fiscal-service/internal/provider/bank"
	"fiscal-service/internal/provider/fiscal"
	"fiscal-service/internal/repository"
	"fiscal-service/internal/router"
	"fiscal-service/internal/usecase"
	"fiscal-service/internal/vault"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("starting fiscal service")

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Server.Env),
		zap.String("port", cfg.Server.Port))

	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	logger.Info("connected to database", zap.String("database", cfg.Database.DBName))

	credVault, err := vault.New(cfg.Vault.MasterKey)
	if err != nil {
		logger.Fatal("failed to initialize credential vault", zap.Error(err))
	}

	// Pattern tables fall back to the built-in production defaults when not
	// overridden through the environment.
	clsCfg := classifier.DefaultConfig()
	if len(cfg.NonTargetCodes) > 0 {
		clsCfg.NonTargetCodes = cfg.NonTargetCodes
	}
	if cfg.ExcludedAccount != "" {
		clsCfg.ExcludedAccount = cfg.ExcludedAccount
	}
	cls := classifier.New(clsCfg)

	prodCfg := product.DefaultConfig()
	if len(cfg.ProductTitles) > 0 {
		prodCfg.Titles = cfg.ProductTitles
	}
	if cfg.DefaultTitle != "" {
		prodCfg.DefaultTitle = cfg.DefaultTitle
	}
	resolver := product.New(prodCfg)

	var locks *locker.Locker
	if cfg.Redis.Enabled {
		locks, err = locker.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer locks.Close()
	} else {
		logger.Warn("redis disabled, issuance relies on the receipts unique index alone")
	}

	var publisher *events.Publisher
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer publisher.Close()
		logger.Info("kafka publisher enabled", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	companyRepo := repository.NewCompanyRepository(dbPool)
	paymentRepo := repository.NewPaymentRepository(dbPool)
	receiptRepo := repository.NewReceiptRepository(dbPool)

	bankClient := bank.NewClient(cfg.Bank.BaseURL)
	fiscalClient := fiscal.NewClient(cfg.Fiscal.BaseURL)

	ingestUC := usecase.NewIngestUsecase(companyRepo, paymentRepo, bankClient, credVault, cls, logger)
	issueUC := usecase.NewIssueUsecase(
		companyRepo, paymentRepo, receiptRepo,
		fiscalClient, credVault, resolver,
		locks, publisher, cfg.Fiscal.CashierName, logger,
	)

	ingestHandler := handler.NewIngestHandler(ingestUC, logger)
	receiptHandler := handler.NewReceiptHandler(issueUC, paymentRepo, logger)

	r := router.SetupRoutes(ingestHandler, receiptHandler, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	logger.Info("stopped")
}
