package backend

import (
	"context"
	"fmt"
	"log/slog"

	"gastos/internal/storage"
	"gastos/internal/store/firestore"
	"gastos/internal/store/memory"
	"gastos/internal/store/postgres"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend opens the configured store and seeds its allow-list.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case MemoryBackend:
		res, err = f.createMemoryBackend(config)
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(config)
	case PostgresBackend:
		res, err = f.createPostgresBackend(ctx, config)
	case FirestoreBackend:
		res, err = f.createFirestoreBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}
	res.Type = config.Type

	for _, email := range config.AllowedEmails {
		if email == "" {
			continue
		}
		if err := res.Backend.Allow(ctx, email); err != nil {
			if res.Cleanup != nil {
				_ = res.Cleanup()
			}
			return nil, fmt.Errorf("seed allow-list: %w", err)
		}
	}
	if len(config.AllowedEmails) > 0 {
		f.logger.Info("Seeded allow-list", "count", len(config.AllowedEmails))
	}
	return res, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	if config.SeedDir == "" {
		f.logger.Info("Initialized memory backend")
		return &BackendResult{Backend: memory.New(nil)}, nil
	}

	s, err := memory.NewFromFiles(config.SeedDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory seed: %w", err)
	}
	f.logger.Info("Initialized memory backend", "seed_dir", config.SeedDir)
	return &BackendResult{Backend: s}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{Backend: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := postgres.Connect(ctx, config.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	f.logger.Info("Initialized Postgres backend")
	return &BackendResult{Backend: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createFirestoreBackend(ctx context.Context, config Config) (*BackendResult, error) {
	s, err := firestore.New(ctx, config.FirestoreProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firestore client: %w", err)
	}

	f.logger.Info("Initialized Firestore backend", "project_id", config.FirestoreProjectID)
	return &BackendResult{Backend: s, Cleanup: s.Close}, nil
}
