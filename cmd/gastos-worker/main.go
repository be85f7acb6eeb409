package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"gastos/internal/amqp"
	"gastos/internal/backend"
	"gastos/internal/cli"
	"gastos/internal/config"
	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/services"
	gsheet "gastos/internal/sheets/google"
	"gastos/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger())
	logger := cli.ConfigureLogger(cfg, applog.ComponentWorker)

	if !cfg.SheetsEnabled() {
		logger.Error("GOOGLE_SPREADSHEET_ID is required for the sheets mirror worker")
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger.Logger)
	defer cancel()

	logger.Info("Starting gastos-worker")
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Worker exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	if res.Cleanup != nil {
		defer res.Cleanup()
	}
	expenses := services.NewExpenseService(res.Backend, services.WithIngestMode(core.IngestMode(cfg.IngestMode)))

	sheet, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, gsheet.Credentials{
		JSON: cfg.GoogleServiceAccountJSON,
		File: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return err
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", sheet.SheetName())

	mirror := worker.NewSheetsMirror(expenses, sheet, worker.MirrorConfig{
		Interval: cfg.SyncInterval,
		Debounce: worker.DefaultMirrorConfig().Debounce,
	})

	g, gctx := errgroup.WithContext(ctx)
	if err := mirror.Start(gctx); err != nil {
		return err
	}

	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return err
		}
		defer client.Close()

		g.Go(func() error {
			err := client.ConsumeExpenseChanged(gctx, mirror.HandleExpenseChanged)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		logger.Info("AMQP disabled - mirroring on the periodic interval only", "interval", cfg.SyncInterval)
	}

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, stopCancel := cli.ShutdownContext(30 * time.Second)
		defer stopCancel()
		return mirror.Stop(stopCtx)
	})

	return g.Wait()
}
