// Package cli provides the initialization shared by cmd/gastos,
// cmd/gastos-worker and cmd/gastos-admin.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gastos/internal/config"
	applog "gastos/internal/log"
)

// SetupLogger installs the default logger at info level in text format.
// Called before the configuration is known.
func SetupLogger() *slog.Logger {
	logger := slog.New(applog.NewHandler("text", slog.LevelInfo, os.Stdout))
	slog.SetDefault(logger)
	return logger
}

// ConfigureLogger replaces the default logger using LOG_LEVEL and LOG_FORMAT.
func ConfigureLogger(cfg *config.Config, component string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     cfg.Level(),
		Component: component,
		Format:    cfg.LogFormat,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Configuration could not be loaded", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// ShutdownContext bounds cleanup after the main context is cancelled.
func ShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
