package main

import (
	"context"
	"errors"
	"os"
	"time"

	"smartsave/internal/amqp"
	"smartsave/internal/cli"
	applog "smartsave/internal/log"
	"smartsave/internal/sheets"
	gsheet "smartsave/internal/sheets/google"
	"smartsave/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(applog.New(applog.DefaultConfig()))
	logger := cli.SetupLogger(cfg.LogLevel)
	logger.Info("Starting smartsave-worker")

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	res := cli.InitBackend(context.Background(), logger, cfg)
	defer res.Close()
	calc := cli.NewCalculator(cfg, res.Store, logger)

	var exporter sheets.GrowthExporter
	if cfg.SheetsEnabled() {
		exp, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleGrowthSheetName,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		}, logger.WithComponent(applog.ComponentSheets).Slog())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", "error", err)
			os.Exit(1)
		}
		exporter = exp
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cli.Topology(cfg), logger.WithComponent(applog.ComponentAMQP).Slog())
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// The payment handler must not republish to its own queue, so it keeps the
	// logging initiator.
	w := worker.New(calc, exporter, nil, worker.Config{GrowthMonths: cfg.GrowthMonths},
		logger.WithComponent(applog.ComponentWorker).Slog())

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	go w.RunExports(ctx, cfg.ExportInterval)

	if err := amqpClient.Consume(ctx, w.Handlers()); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
