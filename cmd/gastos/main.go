package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"gastos/internal/amqp"
	"gastos/internal/auth"
	"gastos/internal/backend"
	"gastos/internal/cli"
	"gastos/internal/config"
	"gastos/internal/core"
	"gastos/internal/draft"
	apphttp "gastos/internal/http"
	applog "gastos/internal/log"
	"gastos/internal/members"
	"gastos/internal/period"
	"gastos/internal/prefs"
	"gastos/internal/services"
	gsheet "gastos/internal/sheets/google"
	"gastos/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger())
	logger := cli.ConfigureLogger(cfg, applog.ComponentApp)

	ctx, cancel := cli.SignalContext(logger.Logger)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
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
		defer func() {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}()
	}

	locale, err := period.ParseLocale(cfg.MonthLocale)
	if err != nil {
		return err
	}
	ingest := services.WithIngestMode(core.IngestMode(cfg.IngestMode))

	g, gctx := errgroup.WithContext(ctx)

	// Change notifications go to the broker when one is configured; without
	// one, a configured spreadsheet is mirrored from this process.
	var publisher services.Publisher
	switch {
	case cfg.AMQPEnabled():
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return err
		}
		publisher = client
		logger.Info("Publishing expense changes", "exchange", cfg.AMQPExchange)
	case cfg.SheetsEnabled():
		mirror, err := newMirror(ctx, cfg, services.NewExpenseService(res.Backend, ingest))
		if err != nil {
			return err
		}
		if err := mirror.Start(gctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, stopCancel := cli.ShutdownContext(10 * time.Second)
			defer stopCancel()
			_ = mirror.Stop(stopCtx)
		}()
		publisher = worker.LocalPublisher{Mirror: mirror}
		logger.Info("Mirroring to Google Sheets in-process", "sheet", cfg.GoogleSheetName)
	default:
		logger.Info("Expense change notifications disabled")
	}

	opts := []services.Option{ingest}
	if publisher != nil {
		opts = append(opts, services.WithPublisher(publisher))
	}
	svc := services.NewExpenseService(res.Backend, opts...)
	defer svc.Close()

	kv, err := prefs.Open(cfg.PrefsPath)
	if err != nil {
		return err
	}
	registry, err := members.NewRegistry(kv)
	if err != nil {
		return err
	}
	drafts := draft.NewStore(time.Now)
	registry.Subscribe(drafts)

	jwt := auth.NewJWTManager(cfg.JWTSecret, cfg.SessionTTL)
	var google *auth.GoogleProvider
	if cfg.GoogleSignInEnabled() {
		google = auth.NewGoogleProvider(cfg.GoogleOAuthClientID, cfg.GoogleOAuthClientSecret, cfg.GoogleOAuthRedirectURL)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Expenses:  svc,
		Members:   registry,
		Drafts:    drafts,
		Prefs:     kv,
		Gate:      auth.NewGate(res.Backend, jwt),
		JWT:       jwt,
		Passwords: auth.NewPasswordAuthenticator(res.Backend),
		Google:    google,
		Ready: func(ctx context.Context) error {
			return backend.Ping(ctx, res.Backend)
		},
		Locale:             locale,
		Logger:             logger,
		LoginRatePerMinute: cfg.LoginRatePerMinute,
		SecureCookies:      cfg.SecureCookies,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g.Go(func() error {
		logger.Info("Starting gastos server", "port", cfg.Port, "backend", res.Type)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := cli.ShutdownContext(30 * time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newMirror(ctx context.Context, cfg *config.Config, lister worker.ExpenseLister) (*worker.SheetsMirror, error) {
	client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, gsheet.Credentials{
		JSON: cfg.GoogleServiceAccountJSON,
		File: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	return worker.NewSheetsMirror(lister, client, worker.MirrorConfig{
		Interval: cfg.SyncInterval,
		Debounce: worker.DefaultMirrorConfig().Debounce,
	}), nil
}
