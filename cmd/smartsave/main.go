package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"smartsave/internal/amqp"
	"smartsave/internal/cache"
	"smartsave/internal/cli"
	apphttp "smartsave/internal/http"
	"smartsave/internal/identity"
	applog "smartsave/internal/log"
	"smartsave/internal/payment"
	"smartsave/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(applog.New(applog.DefaultConfig()))
	logger := cli.SetupLogger(cfg.LogLevel)

	res := cli.InitBackend(context.Background(), logger, cfg)
	calc := cli.NewCalculator(cfg, res.Store, logger)
	ids := identity.ContextProvider{}

	// Without a broker totals are recalculated inline and deposits are only logged.
	deps := services.TransactionServiceDeps{
		Store:  res.Store,
		Calc:   calc,
		IDs:    ids,
		Logger: logger.WithComponent(applog.ComponentSavings).Slog(),
	}
	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cli.Topology(cfg), logger.WithComponent(applog.ComponentAMQP).Slog())
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		deps.Publisher = amqpClient
		deps.Initiator = payment.NewAMQPInitiator(amqpClient)
		logger.Info("AMQP publishing enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - recalculating totals inline")
	}

	cacheManager := cache.NewManager(logger.WithComponent(applog.ComponentCache).Slog())
	views := services.NewViews(cfg.CacheSize, cfg.CacheTTL, cacheManager)
	cacheManager.StartCleanup(cfg.CacheTTL)
	deps.Views = views

	txs := services.NewTransactionService(deps)
	profiles := services.NewProfileService(res.Store, ids, views, nil, logger.Slog())
	dashboard := services.NewDashboardService(calc, txs, ids, views, cfg.InterestRate(), cfg.RecentTransactions, logger.Slog())

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Calc:         calc,
		Transactions: txs,
		Profiles:     profiles,
		Dashboard:    dashboard,
		Ready:        res.Ping,
		Logger:       logger.WithComponent(applog.ComponentHTTP),
		UserHeader:   cfg.UserHeader,
		GrowthMonths: cfg.GrowthMonths,
		RecentLimit:  cfg.RecentTransactions,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		if err := res.Close(); err != nil {
			logger.Warn("Backend close error", "error", err)
		}
	})

	logger.Info("Starting smartsave server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
