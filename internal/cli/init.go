// Package cli holds the start-up steps shared by cmd/smartsave and
// cmd/smartsave-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"smartsave/internal/amqp"
	"smartsave/internal/backend"
	"smartsave/internal/config"
	"smartsave/internal/core"
	"smartsave/internal/identity"
	"smartsave/internal/ledger"
	applog "smartsave/internal/log"
	"smartsave/internal/savings"
)

// SetupLogger builds the process logger for LOG_LEVEL and installs it as the
// slog default.
func SetupLogger(level string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Level = applog.ParseLevel(level)
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend opens the ledger store selected by DATA_BACKEND.
// Returns the backend or exits the process on failure.
func InitBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Slog()).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize ledger backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	logger.Info("Initialized ledger backend", "backend", cfg.DataBackend)
	return res
}

// NewCalculator applies the savings policy from cfg.
func NewCalculator(cfg *config.Config, store ledger.Store, logger *applog.Logger) *savings.Calculator {
	rules := savings.DefaultRules()
	if !cfg.CountExpenseSavings {
		rules = rules.Without(core.Expense)
	}
	return savings.NewCalculator(store, identity.ContextProvider{}, savings.Options{
		Rules:    rules,
		Currency: cfg.DefaultCurrency,
		Logger:   logger.WithComponent(applog.ComponentSavings).Slog(),
	})
}

func Topology(cfg *config.Config) amqp.Topology {
	return amqp.Topology{
		Exchange:     cfg.AMQPExchange,
		RecalcQueue:  cfg.AMQPRecalcQueue,
		PaymentQueue: cfg.AMQPPaymentQueue,
	}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// The returned context is cancelled on SIGINT or SIGTERM; done is closed once
// cleanup has returned or timeout has elapsed, whichever comes first.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
