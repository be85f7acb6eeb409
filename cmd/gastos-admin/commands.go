package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"gastos/internal/auth"
	"gastos/internal/backend"
	"gastos/internal/config"
	"gastos/internal/core"
	"gastos/internal/export"
	applog "gastos/internal/log"
	"gastos/internal/period"
	"gastos/internal/services"
	gsheet "gastos/internal/sheets/google"
	"gastos/internal/worker"
)

// env is what every subcommand needs: the loaded configuration and an
// open backend.
type env struct {
	cfg     *config.Config
	backend *backend.BackendResult
	logger  *applog.Logger
}

func (e *env) close() {
	if e.backend != nil && e.backend.Cleanup != nil {
		if err := e.backend.Cleanup(); err != nil {
			e.logger.Warn("Backend cleanup failed", "error", err)
		}
	}
}

func (e *env) expenses() *services.ExpenseService {
	return services.NewExpenseService(e.backend.Backend, services.WithIngestMode(core.IngestMode(e.cfg.IngestMode)))
}

// openEnv loads the configuration and opens only the backend; the admin
// tool does not need session or broker settings.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := applog.New(applog.Config{
		Level:     cfg.Level(),
		Component: applog.ComponentAdmin,
		Format:    cfg.LogFormat,
		Output:    os.Stderr,
	})

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", bcfg.Type, err)
	}
	return &env{cfg: cfg, backend: res, logger: logger}, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gastos-admin",
		Short:         "Administer the gastos allow-list, accounts and exports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newAllowCmd(),
		newCheckCmd(),
		newAddUserCmd(),
		newExportCmd(),
		newMirrorCmd(),
	)
	return root
}

func newAllowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "allow EMAIL...",
		Short: "Add emails to the allow-list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			for _, email := range args {
				if err := e.backend.Backend.Allow(ctx, email); err != nil {
					return fmt.Errorf("allow %s: %w", email, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "allowed %s\n", email)
			}
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check EMAIL",
		Short: "Report whether an email is on the allow-list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			ok, err := e.backend.Backend.IsAllowed(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return auth.ErrNotAuthorized
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is allowed\n", args[0])
			return nil
		},
	}
}

func newAddUserCmd() *cobra.Command {
	var name, password string
	cmd := &cobra.Command{
		Use:   "add-user EMAIL",
		Short: "Create a password account and allow its email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("GASTOS_ADMIN_PASSWORD")
			}
			if password == "" {
				return errors.New("password required: use --password or GASTOS_ADMIN_PASSWORD")
			}

			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			u, err := auth.NewPasswordAuthenticator(e.backend.Backend).Register(ctx, args[0], name, password)
			if err != nil {
				return err
			}
			if err := e.backend.Backend.Allow(ctx, u.Email); err != nil {
				return fmt.Errorf("allow %s: %w", u.Email, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "account password (min 8 characters)")
	return cmd
}

func newExportCmd() *cobra.Command {
	var month, dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the expenses to an xlsx file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var m *period.Month
			if month != "" {
				parsed, err := period.ParseMonthKey(month)
				if err != nil {
					return err
				}
				m = &parsed
			}

			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			locale, err := period.ParseLocale(e.cfg.MonthLocale)
			if err != nil {
				return err
			}
			exps, err := e.expenses().ListAll(ctx)
			if err != nil {
				return err
			}
			file, err := export.Workbook(exps, m, locale)
			if err != nil {
				return err
			}

			path := filepath.Join(dir, file.Name)
			if err := os.WriteFile(path, file.Content, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", file.Rows, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "mes", "", "month to export as YYYY-MM (default: all)")
	cmd.Flags().StringVar(&dir, "dir", ".", "output directory")
	return cmd
}

func newMirrorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mirror",
		Short: "Rebuild the Google Sheets mirror once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			if !e.cfg.SheetsEnabled() {
				return errors.New("GOOGLE_SPREADSHEET_ID is not set")
			}
			sheet, err := gsheet.New(ctx, e.cfg.GoogleSpreadsheetID, e.cfg.GoogleSheetName, gsheet.Credentials{
				JSON: e.cfg.GoogleServiceAccountJSON,
				File: e.cfg.GoogleServiceAccountFile,
			})
			if err != nil {
				return err
			}
			m := worker.NewSheetsMirror(e.expenses(), sheet, worker.DefaultMirrorConfig())
			if err := m.Rebuild(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mirrored to %s\n", sheet.SheetName())
			return nil
		},
	}
}
