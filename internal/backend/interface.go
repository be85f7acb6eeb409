package backend

import (
	"context"

	"gastos/internal/store"
)

// Backend is a storage adapter serving every outbound port.
type Backend interface {
	store.ExpenseStore
	store.AllowList
	store.UserStore
}

// Pinger is implemented by backends that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Type    BackendType
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	PostgresDSN string

	// Firestore specific
	FirestoreProjectID string

	// Memory backend specific; empty SeedDir starts empty
	SeedDir string

	// Emails added to the allow-list of any backend at startup
	AllowedEmails []string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend    BackendType = "memory"
	SQLiteBackend    BackendType = "sqlite"
	PostgresBackend  BackendType = "postgres"
	FirestoreBackend BackendType = "firestore"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, FirestoreBackend:
		return true
	default:
		return false
	}
}

// Ping checks readiness when the backend supports it.
func Ping(ctx context.Context, b Backend) error {
	if p, ok := b.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
